package progress

import (
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/vpkctl/internal/download"
	"github.com/bnema/vpkctl/internal/ui/styles"
)

// State is the display state of a step or a download row
type State int

const (
	StatePending State = iota
	StateInProgress
	StateComplete
	StateError
	StateWarning
)

// StateOf maps a download status onto a display state
func StateOf(s download.Status) State {
	switch s {
	case download.StatusRunning:
		return StateInProgress
	case download.StatusSucceeded:
		return StateComplete
	case download.StatusFailed:
		return StateError
	case download.StatusCancelled:
		return StateWarning
	default:
		return StatePending
	}
}

// Icons - Nerd Font with ASCII fallback
type Icons struct {
	Check   string
	Cross   string
	Arrow   string
	Pending string
	Warning string
	Spinner string
}

var (
	NerdFontIcons = Icons{
		Check:   "\uf00c",
		Cross:   "\uf00d",
		Arrow:   "\uf061",
		Pending: "\uf111",
		Warning: "\uf071",
		Spinner: "\uf110",
	}

	ASCIIIcons = Icons{
		Check:   "+",
		Cross:   "x",
		Arrow:   "->",
		Pending: "o",
		Warning: "!",
		Spinner: "*",
	}
)

var nerdFonts bool

// SetNerdFonts switches to Nerd Font glyphs; ui.nerd_fonts in the config
func SetNerdFonts(v bool) {
	nerdFonts = v
}

// GetIcons returns the icon set for the terminal. VPKCTL_NERD_FONTS=1
// forces Nerd Font glyphs.
func GetIcons() Icons {
	if nerdFonts || os.Getenv("VPKCTL_NERD_FONTS") == "1" {
		return NerdFontIcons
	}
	return ASCIIIcons
}

var (
	IconStyleCheck   = lipgloss.NewStyle().Foreground(styles.Success)
	IconStyleCross   = lipgloss.NewStyle().Foreground(styles.Error)
	IconStyleArrow   = lipgloss.NewStyle().Foreground(styles.Primary)
	IconStylePending = lipgloss.NewStyle().Foreground(styles.Muted)
	IconStyleWarning = lipgloss.NewStyle().Foreground(styles.Warning)
	IconStyleSpinner = lipgloss.NewStyle().Foreground(styles.Primary)
)

// StyledIcon returns a styled icon string for the given state
func StyledIcon(state State) string {
	icons := GetIcons()
	switch state {
	case StateComplete:
		return IconStyleCheck.Render(icons.Check)
	case StateError:
		return IconStyleCross.Render(icons.Cross)
	case StateWarning:
		return IconStyleWarning.Render(icons.Warning)
	case StateInProgress:
		return IconStyleSpinner.Render(icons.Spinner)
	default:
		return IconStylePending.Render(icons.Pending)
	}
}

// StepStyle returns the text style for a line in the given state
func StepStyle(state State) lipgloss.Style {
	switch state {
	case StateComplete:
		return styles.SuccessText
	case StateError:
		return styles.ErrorText
	case StateWarning:
		return styles.WarningText
	case StateInProgress:
		return styles.NormalText.Bold(true)
	default:
		return styles.MutedText
	}
}
