package theme

import "github.com/charmbracelet/lipgloss"

// Colors defines the palette shared by the report and the progress view
type Colors struct {
	Foreground    lipgloss.Color
	ForegroundDim lipgloss.Color

	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Border    lipgloss.Color

	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color
}

type Theme struct {
	Name   string
	Colors Colors

	Header lipgloss.Style
	Footer lipgloss.Style
	Title  lipgloss.Style
	Box    lipgloss.Style
	Muted  lipgloss.Style

	TableHeader lipgloss.Style
	TableCell   lipgloss.Style
	TableBorder lipgloss.Style

	Succeeded lipgloss.Style
	Partial   lipgloss.Style
	Failed    lipgloss.Style
	Skipped   lipgloss.Style
}

// Current holds the active theme
var Current *Theme

func init() {
	Current = DefaultTheme()
}

// SetTheme changes the current theme
func SetTheme(t *Theme) {
	Current = t
}

// Status returns the style for a run or stage status.
func (t *Theme) Status(status string) lipgloss.Style {
	switch status {
	case "succeeded", "ok":
		return t.Succeeded
	case "partial", "running":
		return t.Partial
	case "failed":
		return t.Failed
	}
	return t.Skipped
}

func buildStyles(name string, c Colors) *Theme {
	t := &Theme{
		Name:   name,
		Colors: c,
	}

	t.Header = lipgloss.NewStyle().
		Foreground(c.Foreground).
		Background(c.Primary).
		Bold(true).
		Padding(0, 2)

	t.Footer = lipgloss.NewStyle().
		Foreground(c.ForegroundDim).
		Padding(0, 2)

	t.Title = lipgloss.NewStyle().
		Foreground(c.Primary).
		Bold(true)

	t.Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c.Border).
		Padding(0, 1)

	t.Muted = lipgloss.NewStyle().
		Foreground(c.ForegroundDim)

	t.TableHeader = lipgloss.NewStyle().
		Foreground(c.Secondary).
		Bold(true)

	t.TableCell = lipgloss.NewStyle().
		Foreground(c.Foreground)

	t.TableBorder = lipgloss.NewStyle().
		Foreground(c.Border)

	t.Succeeded = lipgloss.NewStyle().Foreground(c.Success).Bold(true)
	t.Partial = lipgloss.NewStyle().Foreground(c.Warning).Bold(true)
	t.Failed = lipgloss.NewStyle().Foreground(c.Error).Bold(true)
	t.Skipped = lipgloss.NewStyle().Foreground(c.ForegroundDim)

	return t
}

// DefaultTheme returns the default purple theme
func DefaultTheme() *Theme {
	return buildStyles("default", Colors{
		Foreground:    lipgloss.Color("#FAFAFA"),
		ForegroundDim: lipgloss.Color("#888888"),
		Primary:       lipgloss.Color("#7D56F4"),
		Secondary:     lipgloss.Color("#9D7BFF"),
		Border:        lipgloss.Color("#3C3C3C"),
		Success:       lipgloss.Color("#50FA7B"),
		Warning:       lipgloss.Color("#FFB86C"),
		Error:         lipgloss.Color("#FF5555"),
		Info:          lipgloss.Color("#8BE9FD"),
	})
}

// DraculaTheme returns the Dracula color theme
func DraculaTheme() *Theme {
	return buildStyles("dracula", Colors{
		Foreground:    lipgloss.Color("#f8f8f2"),
		ForegroundDim: lipgloss.Color("#6272a4"),
		Primary:       lipgloss.Color("#bd93f9"),
		Secondary:     lipgloss.Color("#ff79c6"),
		Border:        lipgloss.Color("#44475a"),
		Success:       lipgloss.Color("#50fa7b"),
		Warning:       lipgloss.Color("#ffb86c"),
		Error:         lipgloss.Color("#ff5555"),
		Info:          lipgloss.Color("#8be9fd"),
	})
}

// NordTheme returns the Nord color theme
func NordTheme() *Theme {
	return buildStyles("nord", Colors{
		Foreground:    lipgloss.Color("#eceff4"),
		ForegroundDim: lipgloss.Color("#4c566a"),
		Primary:       lipgloss.Color("#5e81ac"),
		Secondary:     lipgloss.Color("#88c0d0"),
		Border:        lipgloss.Color("#3b4252"),
		Success:       lipgloss.Color("#a3be8c"),
		Warning:       lipgloss.Color("#ebcb8b"),
		Error:         lipgloss.Color("#bf616a"),
		Info:          lipgloss.Color("#81a1c1"),
	})
}

// GruvboxTheme returns the Gruvbox dark theme
func GruvboxTheme() *Theme {
	return buildStyles("gruvbox", Colors{
		Foreground:    lipgloss.Color("#ebdbb2"),
		ForegroundDim: lipgloss.Color("#928374"),
		Primary:       lipgloss.Color("#fe8019"),
		Secondary:     lipgloss.Color("#8ec07c"),
		Border:        lipgloss.Color("#3c3836"),
		Success:       lipgloss.Color("#b8bb26"),
		Warning:       lipgloss.Color("#fabd2f"),
		Error:         lipgloss.Color("#fb4934"),
		Info:          lipgloss.Color("#83a598"),
	})
}

// Plain returns a theme without colors, for output that is not a terminal.
func Plain() *Theme {
	t := buildStyles("plain", Colors{})
	t.Header = lipgloss.NewStyle()
	t.Title = lipgloss.NewStyle()
	t.TableHeader = lipgloss.NewStyle()
	t.Succeeded = lipgloss.NewStyle()
	t.Partial = lipgloss.NewStyle()
	t.Failed = lipgloss.NewStyle()
	return t
}

// GetAvailableThemes returns a list of all available theme names
func GetAvailableThemes() []string {
	return []string{"default", "dracula", "nord", "gruvbox", "plain"}
}

// GetThemeByName returns a theme by its name
func GetThemeByName(name string) *Theme {
	switch name {
	case "dracula":
		return DraculaTheme()
	case "nord":
		return NordTheme()
	case "gruvbox":
		return GruvboxTheme()
	case "plain":
		return Plain()
	default:
		return DefaultTheme()
	}
}
