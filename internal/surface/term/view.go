package term

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ensigniasec/deck-bridge/internal/surface"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle = lipgloss.NewStyle().Faint(true).Width(faceWidth).Align(lipgloss.Center)
	emptyStyle = lipgloss.NewStyle().Width(faceWidth).Height(faceHeight / 2).
			Background(lipgloss.Color("#111111"))
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	faces, brightness := m.deck.snapshot()
	info := m.deck.info

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s  %s", info.Type, info.Serial)))
	b.WriteString(fmt.Sprintf("  brightness %d%%", brightness))
	if m.pressed {
		b.WriteString(fmt.Sprintf("  last key %d", m.lastKey))
	}
	b.WriteString("\n\n")

	var rows []string
	for start := 0; start < info.Keys; start += info.Columns {
		var cells []string
		for idx := start; idx < start+info.Columns && idx < info.Keys; idx++ {
			cells = append(cells, renderKey(idx, faces[idx], brightness), " ")
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, rows...))
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// renderKey draws one face above its shortcut label.
func renderKey(idx int, face surface.NativeImage, brightness int) string {
	label := " "
	if idx < len(shortcuts) {
		label = string(shortcuts[idx])
	}
	label = labelStyle.Render(fmt.Sprintf("[%s] %d", label, idx))

	if face == nil {
		return lipgloss.JoinVertical(lipgloss.Left, emptyStyle.Render(""), label)
	}
	return lipgloss.JoinVertical(lipgloss.Left, renderFace(face, brightness), label)
}

// renderFace draws two pixel rows per terminal row: the upper pixel as the
// foreground of "▀", the lower as its background.
func renderFace(face surface.NativeImage, brightness int) string {
	img, err := surface.DecodeRGB(face, image.Pt(faceWidth, faceHeight))
	if err != nil {
		return emptyStyle.Render("?")
	}
	lines := make([]string, 0, faceHeight/2)
	for y := 0; y+1 < faceHeight; y += 2 {
		var line strings.Builder
		for x := 0; x < faceWidth; x++ {
			top := shade(img.RGBAAt(x, y), brightness)
			bottom := shade(img.RGBAAt(x, y+1), brightness)
			line.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom)).
				Render("▀"))
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// shade dims c by brightness percent and returns it as a hex string.
func shade(c color.RGBA, brightness int) string {
	f := float64(max(0, min(100, brightness))) / 100
	cf, _ := colorful.MakeColor(c)
	return colorful.Color{R: cf.R * f, G: cf.G * f, B: cf.B * f}.Clamped().Hex()
}
