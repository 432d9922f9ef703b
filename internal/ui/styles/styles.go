package styles

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary   = lipgloss.Color("#7D56F4")
	Secondary = lipgloss.Color("#FF79C6")
	Success   = lipgloss.Color("#50FA7B")
	Warning   = lipgloss.Color("#FFB86C")
	Error     = lipgloss.Color("#FF5555")
	Muted     = lipgloss.Color("#6272A4")
	Text      = lipgloss.Color("#F8F8F2")
	Subtle    = lipgloss.Color("#44475A")
)

// Base styles
var (
	Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFDF5")).
		Background(Primary).
		Padding(0, 1).
		Bold(true)

	NormalText  = lipgloss.NewStyle().Foreground(Text)
	MutedText   = lipgloss.NewStyle().Foreground(Muted)
	SuccessText = lipgloss.NewStyle().Foreground(Success)
	WarningText = lipgloss.NewStyle().Foreground(Warning)
	ErrorText   = lipgloss.NewStyle().Foreground(Error)

	// Highlighted marks the cursor row
	Highlighted = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	App = lipgloss.NewStyle().Padding(1, 2)

	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Subtle).
		Padding(0, 1)

	StatusBar = lipgloss.NewStyle().
			Foreground(Text).
			Background(Subtle).
			Padding(0, 1)

	Help    = lipgloss.NewStyle().Foreground(Muted)
	Spinner = lipgloss.NewStyle().Foreground(Primary)
)

// Symbols
var (
	CheckMark = lipgloss.NewStyle().Foreground(Success).SetString("✓")
	CrossMark = lipgloss.NewStyle().Foreground(Error).SetString("✗")
	Bullet    = lipgloss.NewStyle().Foreground(Primary).SetString("•")
	Arrow     = lipgloss.NewStyle().Foreground(Primary).SetString("→")
)

// Tree node styles
var (
	GroupName = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	AddonName = lipgloss.NewStyle().
			Foreground(Text).
			Bold(true)

	// Shadowed is a node that is on but sits below a disabled group
	Shadowed = lipgloss.NewStyle().
			Foreground(Warning)

	KindLabel = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	StrategyBadge = lipgloss.NewStyle().
			Foreground(Secondary)

	ProblemBadge = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(Error).
			Bold(true).
			Padding(0, 1)
)

// EnabledState is how a node's flag shows in listings
type EnabledState int

const (
	StateOff EnabledState = iota
	StateOn
	// StateShadowed is on, but an ancestor group is off
	StateShadowed
)

// NodeState folds a node's own flag and its effective state into one value
func NodeState(enabled, inHierarchy bool) EnabledState {
	switch {
	case inHierarchy:
		return StateOn
	case enabled:
		return StateShadowed
	default:
		return StateOff
	}
}

// FormatEnabled renders a checkbox for s
func FormatEnabled(s EnabledState) string {
	switch s {
	case StateOn:
		return SuccessText.Render("[x]")
	case StateShadowed:
		return Shadowed.Render("[~]")
	default:
		return MutedText.Render("[ ]")
	}
}

// FormatStrategy renders a group's enable strategy, nothing for "none"
func FormatStrategy(strategy string) string {
	if strategy == "" || strategy == "none" {
		return ""
	}
	return StrategyBadge.Render("<" + strategy + ">")
}

// FormatProblems renders a problem count badge, nothing for zero
func FormatProblems(count int) string {
	if count <= 0 {
		return ""
	}
	if count == 1 {
		return ProblemBadge.Render("1 problem")
	}
	return ProblemBadge.Render(fmt.Sprintf("%d problems", count))
}

// FormatSize formats a byte count into a human readable size
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatSuccess formats a success message
func FormatSuccess(msg string) string {
	return CheckMark.String() + " " + SuccessText.Render(msg)
}

// FormatError formats an error message
func FormatError(msg string) string {
	return CrossMark.String() + " " + ErrorText.Render(msg)
}

// FormatWarning formats a warning message
func FormatWarning(msg string) string {
	return WarningText.Render("! " + msg)
}
