package textutil

import "strings"

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a project or
// file name. Slashes, backslashes, colons, and asterisks become dashes; other
// unsafe characters are removed. Runs of whitespace collapse to one space.
func SanitizeFileName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// FileNameOr sanitizes name and returns fallback when nothing usable is left.
func FileNameOr(name, fallback string) string {
	if clean := SanitizeFileName(name); clean != "" && strings.Trim(clean, ".-") != "" {
		return clean
	}
	return fallback
}
