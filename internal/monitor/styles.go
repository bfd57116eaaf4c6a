package monitor

import "github.com/charmbracelet/lipgloss"

var (
	Primary   = lipgloss.Color("#FF6B35")
	Secondary = lipgloss.Color("#1E88E5")
	Success   = lipgloss.Color("#4CAF50")
	Warning   = lipgloss.Color("#FFB74D")
	Error     = lipgloss.Color("#F44336")
	Text      = lipgloss.Color("#E0E0E0")
	Muted     = lipgloss.Color("#90A4AE")

	BorderDark = lipgloss.Color("#30363D")
	HeaderBg   = lipgloss.Color("#1C2128")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(HeaderBg).
			Padding(0, 2).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderDark).
			Foreground(Text).
			Padding(0, 1)

	PanelTitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Width(14)

	ValueStyle = lipgloss.NewStyle().
			Foreground(Text).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
	InfoStyle    = lipgloss.NewStyle().Foreground(Secondary).Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
)

// StateBadge renders a session state with its color.
func StateBadge(state string, halted bool) string {
	if halted {
		return ErrorStyle.Render("● HALTED")
	}
	switch state {
	case "published":
		return SuccessStyle.Render("● LIVE")
	case "fetching", "parsing":
		return InfoStyle.Render("● " + state)
	case "idle":
		return WarningStyle.Render("● idle")
	default:
		return MutedStyle.Render("● " + state)
	}
}
