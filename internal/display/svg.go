package display

import (
	"fmt"
	"strings"
)

// glyphSize is the width and height of one die glyph in pixels.
const glyphSize = 40

// SVG renders icons as inline SVG glyphs, one hexagon per die.
// Each glyph carries the CSS class "die die-<flag>" so pages can color
// natural 20s and 1s.
func SVG(icons []Icon) string {
	var b strings.Builder
	for _, icon := range icons {
		b.WriteString(glyph(icon))
	}
	return b.String()
}

func glyph(icon Icon) string {
	return fmt.Sprintf(
		`<svg class="die die-%s" width="%d" height="%d" viewBox="0 0 40 40" role="img" aria-label="%d">`+
			`<polygon points="20,2 37,11 37,29 20,38 3,29 3,11"/>`+
			`<text x="20" y="25" text-anchor="middle">%d</text></svg>`,
		icon.Flag, glyphSize, glyphSize, icon.Value, icon.Value,
	)
}
