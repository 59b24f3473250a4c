package errors

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FormatForCLI renders the first AmanError in err's chain for a terminal:
// message, hint, then code. Plain errors are reported as internal.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	ae, ok := As(err)
	if !ok {
		ae = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ae.Message)
	for _, k := range sortedDetailKeys(ae.Details) {
		fmt.Fprintf(&sb, "  %s: %s\n", k, ae.Details[k])
	}
	if ae.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", ae.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", ae.Code)
	return sb.String()
}

// LogValue renders the error as a slog group so handlers emit its fields
// instead of the flattened string.
func (e *AmanError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", e.Code),
		slog.String("message", e.Message),
		slog.String("category", string(e.Category)),
		slog.Bool("retryable", e.Retryable),
	}
	if e.Cause != nil {
		attrs = append(attrs, slog.String("cause", e.Cause.Error()))
	}
	for _, k := range sortedDetailKeys(e.Details) {
		attrs = append(attrs, slog.String(k, e.Details[k]))
	}
	return slog.GroupValue(attrs...)
}

func sortedDetailKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
