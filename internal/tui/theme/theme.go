// Package theme holds the colors and styles shared by the TUI panes.
package theme

import "github.com/charmbracelet/lipgloss"

// Palette is a named set of colors.
type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Border    lipgloss.Color
	Muted     lipgloss.Color
	Highlight lipgloss.Color
	Bar       lipgloss.Color
	BarText   lipgloss.Color
}

var palettes = map[string]Palette{
	"default": {
		Primary:   "63",
		Secondary: "241",
		Success:   "42",
		Error:     "196",
		Border:    "238",
		Muted:     "245",
		Highlight: "229",
		Bar:       "236",
		BarText:   "252",
	},
	"mono": {
		Primary:   "252",
		Secondary: "244",
		Success:   "250",
		Error:     "255",
		Border:    "240",
		Muted:     "244",
		Highlight: "231",
		Bar:       "235",
		BarText:   "252",
	},
}

// Current colors. Set through Apply.
var (
	ColorPrimary   lipgloss.Color
	ColorSecondary lipgloss.Color
	ColorSuccess   lipgloss.Color
	ColorError     lipgloss.Color
	ColorBorder    lipgloss.Color
	ColorMuted     lipgloss.Color
	ColorHighlight lipgloss.Color
)

// Shared styles used across TUI components.
var (
	StyleBorder       lipgloss.Style
	StyleActiveBorder lipgloss.Style
	StyleTitle        lipgloss.Style
	StyleMuted        lipgloss.Style
	StyleError        lipgloss.Style
	StyleSuccess      lipgloss.Style
	StyleSelected     lipgloss.Style
	StyleStatusBar    lipgloss.Style
)

func init() {
	Apply("default")
}

// Apply switches to the named palette. Unknown names fall back to
// "default"; the return value reports whether name was known.
func Apply(name string) bool {
	p, ok := palettes[name]
	if !ok {
		p = palettes["default"]
	}

	ColorPrimary, ColorSecondary = p.Primary, p.Secondary
	ColorSuccess, ColorError = p.Success, p.Error
	ColorBorder, ColorMuted, ColorHighlight = p.Border, p.Muted, p.Highlight

	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)
	StyleActiveBorder = StyleBorder.BorderForeground(ColorPrimary)
	StyleTitle = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	StyleMuted = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleError = lipgloss.NewStyle().Foreground(ColorError)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleSelected = lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true)
	StyleStatusBar = lipgloss.NewStyle().
		Background(p.Bar).
		Foreground(p.BarText).
		Padding(0, 1)

	return ok
}
