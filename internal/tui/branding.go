package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/przepisy/internal/config"
)

const AppName = "przepisy"

var LogoLines = []string{
	"┌─┐┬─┐┌─┐┌─┐┌─┐┬┌─┐┬ ┬",
	"├─┘├┬┘┌─┘├┤ ├─┘│└─┐└┬┘",
	"┴  ┴└─└─┘└─┘┴  ┴└─┘ ┴ ",
}

// Colors default to the kitchen palette and are replaced by ApplyTheme.
var (
	PrimaryColor    = lipgloss.Color("#E07A5F")
	SecondaryColor  = lipgloss.Color("#81B29A")
	AccentColor     = lipgloss.Color("#F2CC8F")
	BackgroundColor = lipgloss.Color("#1F1B24")
	SurfaceColor    = lipgloss.Color("#3D405B")
	TextColor       = lipgloss.Color("#F4F1DE")
	MutedColor      = lipgloss.Color("#9A8C98")
	ErrorColor      = lipgloss.Color("#F87171")
	SuccessColor    = lipgloss.Color("#4ADE80")
)

var (
	LogoStyle          lipgloss.Style
	TitleStyle         lipgloss.Style
	HeaderStyle        lipgloss.Style
	HelpStyle          lipgloss.Style
	LocationStyle      lipgloss.Style
	OwnMarkStyle       lipgloss.Style
	StatusInfoStyle    lipgloss.Style
	StatusWarnStyle    lipgloss.Style
	StatusErrorStyle   lipgloss.Style
	StatusSuccessStyle lipgloss.Style
)

func init() {
	buildStyles()
}

// ApplyTheme replaces the palette with configured colors. Empty values keep
// the current color.
func ApplyTheme(c config.UIColors) {
	set := func(dst *lipgloss.Color, v string) {
		if v != "" {
			*dst = lipgloss.Color(v)
		}
	}
	set(&PrimaryColor, c.Primary)
	set(&SecondaryColor, c.Secondary)
	set(&AccentColor, c.Accent)
	set(&BackgroundColor, c.Background)
	set(&SurfaceColor, c.Surface)
	set(&TextColor, c.Text)
	set(&MutedColor, c.Muted)
	set(&ErrorColor, c.Error)
	set(&SuccessColor, c.Success)
	buildStyles()
}

func buildStyles() {
	LogoStyle = lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Bold(true)

	TitleStyle = lipgloss.NewStyle().
		Foreground(TextColor).
		Background(SurfaceColor).
		Bold(true).
		Padding(0, 2)

	HeaderStyle = lipgloss.NewStyle().
		Foreground(SecondaryColor).
		Bold(true)

	HelpStyle = lipgloss.NewStyle().
		Foreground(MutedColor).
		Italic(true)

	LocationStyle = lipgloss.NewStyle().
		Foreground(AccentColor)

	OwnMarkStyle = lipgloss.NewStyle().
		Foreground(AccentColor).
		Bold(true)

	StatusInfoStyle = lipgloss.NewStyle().Foreground(MutedColor)
	StatusWarnStyle = lipgloss.NewStyle().Foreground(AccentColor)
	StatusErrorStyle = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
	StatusSuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
}

func GetCompactBanner(message string) string {
	lines := make([]string, 0, len(LogoLines))
	for _, l := range LogoLines {
		lines = append(lines, LogoStyle.Render(l))
	}
	return lipgloss.JoinVertical(
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, lines...),
		"",
		HelpStyle.Render(message),
	)
}

// ShowBanner writes the logo and version tagline to w.
func ShowBanner(w io.Writer, version string) {
	tagline := "Przepisy z ulubionych blogów"
	if version != "" && version != "dev" {
		if version[0] != 'v' {
			version = "v" + version
		}
		tagline += " " + version
	}

	banner := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(SecondaryColor).
		Padding(1, 3).
		Render(GetCompactBanner(tagline))

	fmt.Fprintln(w, banner)
}
