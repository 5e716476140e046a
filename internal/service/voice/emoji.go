package voice

import (
	"strings"
)

// StripEmoji removes pictographs, dingbats and their joiners from text so
// speech engines do not read them out. Whitespace runs left behind are
// collapsed.
func StripEmoji(text string) string {
	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range text {
		if isEmoji(r) {
			continue
		}
		builder.WriteRune(r)
	}
	return strings.Join(strings.Fields(builder.String()), " ")
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // mahjong tiles through pictographs extended-A
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x2300 && r <= 0x23FF: // watch, hourglass, media controls
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		return true
	case r >= 0xE0020 && r <= 0xE007F: // flag tag sequences
		return true
	case r == 0x200D || r == 0x20E3: // zero width joiner, keycap
		return true
	}
	return false
}
