package slug

import (
	"regexp"
	"strings"
)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

	// accentFolder transliterates the Latin accents that show up in
	// product and collection names ("Crème", "Señorita", "Über").
	accentFolder = strings.NewReplacer(
		"à", "a", "á", "a", "â", "a", "ä", "a", "ã", "a", "å", "a",
		"ç", "c",
		"è", "e", "é", "e", "ê", "e", "ë", "e",
		"ì", "i", "í", "i", "î", "i", "ï", "i", "ı", "i",
		"ñ", "n",
		"ò", "o", "ó", "o", "ô", "o", "ö", "o", "õ", "o", "ø", "o",
		"ù", "u", "ú", "u", "û", "u", "ü", "u",
		"ß", "ss", "ğ", "g", "ş", "s",
		"&", " and ",
	)
)

// Generate creates a URL-friendly slug from the given name.
//
// Examples:
//   - "Crème Slip Dress" → "creme-slip-dress"
//   - "Drip  Hoodie (Black)" → "drip-hoodie-black"
//   - "Rock & Roll Tee" → "rock-and-roll-tee"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = accentFolder.Replace(s)
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Valid reports whether s is already in canonical slug form.
func Valid(s string) bool {
	return s != "" && Generate(s) == s
}
