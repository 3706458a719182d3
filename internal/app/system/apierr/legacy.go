package apierr

import "strings"

// legacyMarkers maps message fragments used by older clients of the admin
// API to the codes that replaced them. Order matters: the first match wins.
var legacyMarkers = []struct {
	fragment string
	code     Code
}{
	{"Unauthorized", CodeUnauthorized},
	{"Forbidden", CodeForbidden},
	{"Missing required fields", CodeValidation},
	{"User already exists", CodeConflict},
}

// FromMessage converts a free-text error message into a coded error, for
// callers that still produce plain messages. Unrecognized messages become
// CodeInternal.
func FromMessage(msg string) *Error {
	for _, m := range legacyMarkers {
		if strings.Contains(msg, m.fragment) {
			return New(m.code, msg)
		}
	}
	return New(CodeInternal, msg)
}
