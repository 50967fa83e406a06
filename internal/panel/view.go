package panel

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/digipin/internal/history"
)

const timeLayout = "2006-01-02 15:04:05"

// View renders the panel
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(headerStyle.Render(" DIGIPIN Tools ") + "\n")

	// Encode
	b.WriteString(sectionStyle.Render("┃ Encode (lat → DIGIPIN)") + "\n")
	b.WriteString(labelStyle.Render("  Latitude   ") + m.inputs[focusLat].View() + "\n")
	b.WriteString(labelStyle.Render("  Longitude  ") + m.inputs[focusLng].View() + "\n")

	locate := footerKeyStyle.Render("[ctrl+l]") + dimStyle.Render(" Use Current Location")
	if m.locating {
		locate = dimStyle.Render("  Locating...")
	}
	b.WriteString("  " + locate)
	if m.code != "" {
		b.WriteString("   " + chipStyle.Render(m.code))
	}
	b.WriteString("\n")
	if m.encodeErr != "" {
		b.WriteString("  " + errorStyle.Render(m.encodeErr) + "\n")
	}
	if m.locationErr != "" {
		b.WriteString("  " + errorStyle.Render(m.locationErr) + "\n")
		if m.locationFix != "" {
			b.WriteString("  " + dimStyle.Render(m.locationFix) + "\n")
		}
	}

	// Decode
	b.WriteString(sectionStyle.Render("┃ Decode (DIGIPIN → lat,lng)") + "\n")
	b.WriteString(labelStyle.Render("  DIGIPIN    ") + m.inputs[focusCode].View() + "\n")
	switch {
	case m.decodeErr != "":
		b.WriteString("  " + errorStyle.Render(m.decodeErr) + "\n")
	case m.decoded != "":
		b.WriteString("  " + chipStyle.Render(m.decoded) + "  " +
			footerKeyStyle.Render("[ctrl+o]") + dimStyle.Render(" Open in map") + "\n")
	}

	// Recent
	b.WriteString(sectionStyle.Render("┃ Recent") + "\n")
	b.WriteString("  " + dimStyle.Render(fmt.Sprintf("Showing %d of last %d", len(m.items), m.limit)) +
		"   " + dimStyle.Render("Keep last ") + footerKeyStyle.Render("[") +
		dimStyle.Render(fmt.Sprintf(" %d ", m.limit)) + footerKeyStyle.Render("]") + "\n")

	if m.loadErr != "" {
		b.WriteString("  " + errorStyle.Render(m.loadErr) + "\n")
	}
	if len(m.items) == 0 {
		b.WriteString("  " + dimStyle.Render("No recent items") + "\n")
	}
	for i, item := range m.items {
		b.WriteString(m.renderItem(i, item) + "\n")
	}

	if m.status != "" {
		style := okStyle
		if m.statusErr {
			style = errorStyle
		}
		b.WriteString("\n" + style.Render(m.status) + "\n")
	}

	footer := footerKeyStyle.Render("[tab]") + footerStyle.Render(" next  ") +
		footerKeyStyle.Render("[enter]") + footerStyle.Render(" convert  ") +
		footerKeyStyle.Render("[y]") + footerStyle.Render(" copy  ") +
		footerKeyStyle.Render("[o]") + footerStyle.Render(" map  ") +
		footerKeyStyle.Render("[ctrl+x]") + footerStyle.Render(" clear  ") +
		footerKeyStyle.Render("[esc]") + footerStyle.Render(" quit")
	b.WriteString("\n" + footer + "\n")
	b.WriteString(dimStyle.Render("Tip: select coordinates anywhere and run `digipin select`."))

	return containerStyle.Render(b.String())
}

func (m Model) renderItem(i int, item history.Item) string {
	direction := "lat,lng → PIN"
	if item.Kind == history.KindDecode {
		direction = "PIN → lat,lng"
	}
	when := time.UnixMilli(item.Timestamp).Local().Format(timeLayout)

	line := fmt.Sprintf("%s • %s", direction, when)
	marker := "  "
	if m.focus == focusList && i == m.cursor {
		marker = selectedStyle.Render("> ")
		line = selectedStyle.Render(line)
	} else {
		line = dimStyle.Render(line)
	}
	return marker + line + "  " + chipStyle.Render(item.Output)
}
