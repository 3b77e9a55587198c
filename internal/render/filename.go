package render

import "strings"

const maxStemLen = 128

// FileName turns a read id into a plot file name with the given extension.
// Anything other than ASCII letters, digits, dot, underscore or dash becomes
// a single underscore, so ids like "run/7:ch12" cannot leave the output
// directory.
func FileName(readID, ext string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range readID {
		if b.Len() >= maxStemLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	stem := strings.Trim(b.String(), "._")
	if stem == "" {
		stem = "read"
	}
	return stem + ext
}
