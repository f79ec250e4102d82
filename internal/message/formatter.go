// Package message implements template formatting for outbound SMS content.
// Templates use literal-bracket tokens ("Hi [FirstName]") substituted from a
// named value map.
package message

import (
	"regexp"
	"unicode/utf8"

	"rollcall/internal/types"
)

// tokenPattern matches bracketed template tokens. Token names are exact,
// case-sensitive identifiers.
var tokenPattern = regexp.MustCompile(`\[([A-Za-z0-9_]+)\]`)

// Format substitutes named tokens in the template and enforces the
// single-segment SMS length limit.
//
// Tokens with no matching value are left verbatim in the output and returned
// in unresolved so the caller can log them; silently shipping a literal
// "[TokenName]" to an end user is a latent configuration defect, but failing
// hard here would change observable behavior for templates that rely on it.
//
// Returns an AppError with code ErrCodeFormatTooLong when the formatted
// result exceeds types.MaxMessageLen runes.
func Format(template string, tokens map[string]string) (string, []string, error) {
	var unresolved []string

	out := tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		if val, ok := tokens[name]; ok {
			return val
		}
		unresolved = append(unresolved, name)
		return match
	})

	if n := utf8.RuneCountInString(out); n > types.MaxMessageLen {
		return "", unresolved, types.NewAppError(
			types.ErrCodeFormatTooLong,
			"formatted message exceeds single-segment SMS limit",
			nil,
		)
	}

	return out, unresolved, nil
}
