package podcast

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxNameBytes = 255

const invalidNameChars = `\/:*?"<>|`

// reserved device names on windows, a file can't be called like that even with extension
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SanitizeFilename strips characters illegal on common file systems.
// The result is limited to 255 bytes and never empty.
func SanitizeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == utf8.RuneError || unicode.IsControl(r) || strings.ContainsRune(invalidNameChars, r) {
			return -1
		}
		return r
	}, name)

	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimRight(cleaned, ". ")
	cleaned = truncateBytes(cleaned, maxNameBytes)
	cleaned = strings.TrimRight(cleaned, ". ")

	if cleaned == "" {
		return "untitled"
	}
	if reservedNames[strings.ToUpper(cleaned)] {
		cleaned += "_"
	}
	return cleaned
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}
	s = s[:limit]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
