package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/pmcore/internal/model"
	"github.com/nhle/pmcore/internal/toast"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps overlay content such as help and forms.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BadgeStyle renders the unread count in the header.
var BadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorRed).
	Padding(0, 1)

// OfflineBannerStyle renders the offline mode banner.
var OfflineBannerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorOrange).
	Padding(0, 1)

// KindColor returns the color for a notification kind.
func KindColor(k model.Kind) lipgloss.AdaptiveColor {
	switch k {
	case model.KindSuccess:
		return ColorGreen
	case model.KindWarning:
		return ColorOrange
	case model.KindError:
		return ColorRed
	default:
		return ColorBlue
	}
}

// KindIcon returns the glyph shown beside a notification.
func KindIcon(k model.Kind) string {
	switch k {
	case model.KindSuccess:
		return "✔"
	case model.KindWarning:
		return "⚠"
	case model.KindError:
		return "✖"
	default:
		return "ℹ"
	}
}

// KindStyle returns a bold style in the kind's color.
func KindStyle(k model.Kind) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(KindColor(k))
}

// ToastStyle returns the style for a toast of variant v.
func ToastStyle(v toast.Variant) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Foreground(ColorWhite).Padding(0, 1)

	switch v {
	case toast.VariantSuccess:
		return base.Background(ColorGreen)
	case toast.VariantWarning:
		return base.Background(ColorOrange)
	case toast.VariantError:
		return base.Background(ColorRed)
	default:
		return base.Background(ColorBlue)
	}
}
