package progress

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bnema/vpkctl/internal/download"
)

// Sender is what Feed needs of a *tea.Program
type Sender interface {
	Send(msg tea.Msg)
}

// Feed forwards downloads to a running program in the order they were
// added. Messages queued before Attach are delivered once it is called.
type Feed struct {
	mu     sync.Mutex
	queue  []tea.Msg
	wake   chan struct{}
	closed bool
}

func NewFeed() *Feed {
	return &Feed{wake: make(chan struct{}, 1)}
}

// Attach starts delivering to s on a goroutine of its own
func (f *Feed) Attach(s Sender) {
	go f.run(s)
}

func (f *Feed) run(s Sender) {
	for range f.wake {
		for {
			f.mu.Lock()
			if len(f.queue) == 0 {
				closed := f.closed
				f.mu.Unlock()
				if closed {
					return
				}
				break
			}
			msg := f.queue[0]
			f.queue = f.queue[1:]
			f.mu.Unlock()
			s.Send(msg)
		}
	}
}

// Add shows item under name. It never blocks, so it can be called from the
// tree scheduler.
func (f *Feed) Add(name string, item download.Item) {
	f.push(AddItemMsg{Name: name, Item: item}, false)
}

// Done tells the model that nothing more will be added. Later Adds are
// dropped.
func (f *Feed) Done() {
	f.push(DoneMsg{}, true)
}

func (f *Feed) push(msg tea.Msg, last bool) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.queue = append(f.queue, msg)
	f.closed = last
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}
