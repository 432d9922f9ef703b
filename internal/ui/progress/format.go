package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/bnema/vpkctl/internal/download"
	"github.com/bnema/vpkctl/internal/ui/styles"
)

// Out receives every Print helper's output
var Out io.Writer = os.Stdout

// PrintStep prints a line with the icon of state
func PrintStep(state State, message string) {
	_, _ = fmt.Fprintln(Out, FormatStep(state, message))
}

func PrintComplete(message string) { PrintStep(StateComplete, message) }
func PrintError(message string)    { PrintStep(StateError, message) }
func PrintWarning(message string)  { PrintStep(StateWarning, message) }
func PrintPending(message string)  { PrintStep(StatePending, message) }

// PrintTitle prints a bold header followed by a blank line
func PrintTitle(title string) {
	_, _ = fmt.Fprintf(Out, "%s\n\n", styles.NormalText.Bold(true).Render(title))
}

// PrintDetail prints an indented muted line under a step
func PrintDetail(detail string) {
	_, _ = fmt.Fprintf(Out, "      %s\n", styles.MutedText.Render(detail))
}

// PrintSummary prints a muted closing line
func PrintSummary(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(Out, "\n  %s\n", styles.MutedText.Render(fmt.Sprintf(format, args...)))
}

// FormatStep returns a formatted step line
func FormatStep(state State, message string) string {
	return fmt.Sprintf("  %s %s", StyledIcon(state), StepStyle(state).Render(message))
}

// FormatCount formats a progress count like "3/12"
func FormatCount(current, total int) string {
	return fmt.Sprintf("%d/%d", current, total)
}

// FormatTransfer describes how far item got, e.g. "1.5 MB / 3.0 MB, 512.0 KB/s"
func FormatTransfer(item download.Item) string {
	done := styles.FormatSize(item.BytesDownloaded())
	s := done
	if total := item.TotalBytes(); total > 0 {
		s = done + " / " + styles.FormatSize(total)
	}
	if item.Status() == download.StatusRunning {
		s += ", " + styles.FormatSize(int64(item.Speed())) + "/s"
	}
	return s
}

// Percent is the completed fraction of item in [0, 1], 0 while the size is
// unknown
func Percent(item download.Item) float64 {
	total := item.TotalBytes()
	if total <= 0 {
		if item.Status() == download.StatusSucceeded {
			return 1
		}
		return 0
	}
	p := float64(item.BytesDownloaded()) / float64(total)
	if p > 1 {
		return 1
	}
	return p
}
