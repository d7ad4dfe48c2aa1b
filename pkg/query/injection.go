package query

import (
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/lattice-hq/lattice-engine/pkg/apperrors"
)

// ScreenProperties runs libinjection over every string property value and
// returns a field error per value that fingerprints as SQL injection. Values
// are always bound parameters, so this is defense in depth rather than the
// primary barrier; only strings are checked because other value types cannot
// carry statement syntax. Fields are screened in name order so repeated calls
// report the same error sequence.
func ScreenProperties(properties map[string]any) []apperrors.FieldError {
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []apperrors.FieldError
	for _, name := range names {
		s, ok := properties[name].(string)
		if !ok {
			continue
		}
		if isSQLi, _ := libinjection.IsSQLi(s); isSQLi {
			errs = append(errs, apperrors.FieldError{
				Field:      name,
				Message:    "value contains a disallowed statement pattern",
				Constraint: "injection",
			})
		}
	}
	return errs
}
