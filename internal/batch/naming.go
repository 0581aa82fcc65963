package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const maxNameLength = 150

// OutputPath renders the output filename template for one batch index
// and returns a path under dir that does not collide with an existing
// file. Collisions get a counter suffix.
func OutputPath(dir, template string, index int, now time.Time) string {
	base := outputBaseName(template, index, now)

	path := filepath.Join(dir, base+".mp4")
	for n := 1; ; n++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.mp4", base, n))
	}
}

// outputBaseName expands {index}, {date} and {time} tokens and
// sanitizes the result into a safe filename. Empty or degenerate
// templates fall back to the default numbering scheme.
func outputBaseName(template string, index int, now time.Time) string {
	template = strings.TrimSpace(template)
	if template == "" {
		template = "mix_{index}"
	}

	values := map[string]string{
		"index": fmt.Sprintf("%03d", index),
		"date":  now.Format("20060102"),
		"time":  now.Format("150405"),
	}

	base := sanitizeName(expandTemplate(template, values))
	if base == "" {
		base = fmt.Sprintf("mix_%03d", index)
	}
	return base
}

// expandTemplate substitutes {token} occurrences from values. Unknown
// tokens expand to nothing; an unterminated brace is kept literally.
func expandTemplate(template string, values map[string]string) string {
	var b strings.Builder
	for i := 0; i < len(template); {
		ch := template[i]
		if ch != '{' {
			b.WriteByte(ch)
			i++
			continue
		}

		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			b.WriteString(template[i:])
			break
		}

		token := strings.ToLower(template[i+1 : i+end])
		if val, ok := values[token]; ok {
			b.WriteString(val)
		}
		i += end + 1
	}
	return b.String()
}

// sanitizeName keeps letters, digits and a few separator characters,
// collapsing everything else into single underscores.
func sanitizeName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range value {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '-' || r == '.' || r == '_':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	result := strings.Trim(b.String(), "_.-")
	for len(result) > maxNameLength {
		_, size := utf8.DecodeLastRuneInString(result)
		result = result[:len(result)-size]
	}
	return result
}
