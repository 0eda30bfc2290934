package api

import (
	"mime"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFilename folds a filename to printable ASCII: diacritics are stripped
// ("Kanelbullar på fat.png" becomes "Kanelbullar pa fat.png") and any other
// non-ASCII rune becomes '-'
func asciiFilename(filename string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, filename)
	if err != nil {
		folded = filename
	}

	return strings.Map(func(r rune) rune {
		if r < 128 && unicode.IsPrint(r) && r != '"' && r != '\\' {
			return r
		}
		return '-'
	}, folded)
}

// contentDisposition builds an attachment header carrying both the ASCII
// fallback name and the exact UTF-8 name
func contentDisposition(filename string) string {
	ascii := asciiFilename(filename)
	if ascii == filename {
		return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	}
	header := mime.FormatMediaType("attachment", map[string]string{"filename": ascii})
	// FormatMediaType emits filename*=utf-8''... for non-ASCII values
	if exact := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); exact != "" {
		header += strings.TrimPrefix(exact, "attachment")
	}
	return header
}
