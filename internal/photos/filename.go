package photos

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultAllowedExtensions lists the photo types accepted when no override is configured.
var DefaultAllowedExtensions = []string{"png", "jpg", "jpeg", "gif"}

// HasAllowedExtension reports whether filename ends in one of the allowed extensions.
// Matching is case-insensitive; a filename without a dot never matches.
func HasAllowedExtension(filename string, allowed []string) bool {
	dot := strings.LastIndex(filename, ".")
	if dot < 0 {
		return false
	}
	extension := strings.ToLower(filename[dot+1:])
	for _, candidate := range allowed {
		if strings.ToLower(strings.TrimPrefix(strings.TrimSpace(candidate), ".")) == extension {
			return true
		}
	}
	return false
}

// SanitizeFilename reduces a client supplied filename to a safe, flat ASCII name.
// Path separators become spaces, runs of whitespace collapse to "_", characters outside
// [A-Za-z0-9_.-] are dropped and leading or trailing dots and underscores are trimmed.
func SanitizeFilename(filename string) string {
	decomposed := norm.NFKD.String(filename)
	var ascii strings.Builder
	for _, r := range decomposed {
		if r < unicode.MaxASCII {
			ascii.WriteRune(r)
		}
	}

	flattened := strings.NewReplacer("/", " ", `\`, " ").Replace(ascii.String())
	joined := strings.Join(strings.Fields(flattened), "_")

	var cleaned strings.Builder
	for _, r := range joined {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			cleaned.WriteRune(r)
		case r == '_', r == '.', r == '-':
			cleaned.WriteRune(r)
		}
	}

	result := strings.Trim(cleaned.String(), "._")
	if result == "" || path.Base(result) != result {
		return ""
	}
	return result
}
