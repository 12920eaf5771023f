package translate

// cjkRanges lists the Unicode code-point ranges treated as CJK text:
// unified ideographs (plus extension A and the compatibility block),
// hiragana, katakana, and hangul.
var cjkRanges = [][2]rune{
	{0x4E00, 0x9FFF},   // CJK Unified Ideographs
	{0x3400, 0x4DBF},   // CJK Unified Ideographs Extension A
	{0xF900, 0xFAFF},   // CJK Compatibility Ideographs
	{0x3040, 0x309F},   // Hiragana
	{0x30A0, 0x30FF},   // Katakana
	{0xAC00, 0xD7AF},   // Hangul Syllables
	{0x1100, 0x11FF},   // Hangul Jamo
	{0x20000, 0x2A6DF}, // CJK Unified Ideographs Extension B
}

// ContainsCJK reports whether the string holds at least one Chinese,
// Japanese, or Korean code point.
func ContainsCJK(s string) bool {
	for _, r := range s {
		for _, rng := range cjkRanges {
			if r >= rng[0] && r <= rng[1] {
				return true
			}
		}
	}
	return false
}
