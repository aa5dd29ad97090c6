package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/ad/go-course-progress/internal/apperr"
)

// parseCommand splits "/cmd@bot a b c" into "/cmd" and its arguments. Text
// that is not a command yields an empty name.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	name := fields[0]
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	return strings.ToLower(name), fields[1:]
}

// restAfter returns the raw text following the first n arguments, so a
// reason keeps its original spacing.
func restAfter(text string, n int) string {
	rest := strings.TrimSpace(text)
	for i := 0; i <= n; i++ {
		idx := strings.IndexFunc(rest, isSpace)
		if idx < 0 {
			return ""
		}
		rest = strings.TrimLeftFunc(rest[idx:], isSpace)
	}
	return strings.TrimSpace(rest)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func splitRoles(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
}

func userKey(telegramID int64) string {
	return strconv.FormatInt(telegramID, 10)
}

// describeError renders an engine error for a chat reply.
func describeError(err error) string {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return "❌ Internal error, try again later"
	}
	switch ae.Kind {
	case apperr.KindValidation:
		return "❌ Rejected:\n• " + strings.Join(ae.Issues, "\n• ")
	case apperr.KindNotFound:
		return "❌ " + strings.Join(ae.Issues, "; ")
	case apperr.KindIntegrity:
		return "⚠️ Content changed while processing: " + strings.Join(ae.Issues, "; ")
	default:
		return "❌ Storage error, nothing was changed"
	}
}
