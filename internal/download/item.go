package download

import "context"

// Status is the lifecycle state of a download
type Status int

const (
	StatusPreparing Status = iota
	StatusRunning
	StatusPaused
	StatusSucceeded
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPreparing:
		return "preparing"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusSucceeded:
		return "succeeded"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Finished reports whether s is a terminal state
func (s Status) Finished() bool {
	return s == StatusSucceeded || s == StatusCancelled || s == StatusFailed
}

// Item is a running or finished transfer. All methods are safe to call from
// any goroutine.
type Item interface {
	URL() string
	FilePath() string
	BytesDownloaded() int64
	// TotalBytes is 0 until the size is known, and stays 0 when the server
	// does not announce it.
	TotalBytes() int64
	// Speed is the recent transfer rate in bytes per second
	Speed() float64
	Status() Status
	// Err is set once Status is StatusFailed
	Err() error

	Pause()
	Resume()
	// Cancel stops the transfer and keeps the resume sidecar
	Cancel()
	// Done is closed when the item reaches a terminal state
	Done() <-chan struct{}
	// Wait blocks until the item finishes or ctx ends
	Wait(ctx context.Context) error
	// Close cancels the transfer if still running and waits for it to stop
	Close() error
}
