package decoder

// TruncateName caps a session name at 50 runes. Every source derives
// display names from free-form log text, so the cap lives here.
func TruncateName(s string) string {
	runes := []rune(s)
	if len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	return s
}
