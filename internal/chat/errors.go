package chat

import "errors"

// ErrConflict is reserved for stricter registration policies; a wrong
// password on an existing name is reported as ErrAuth.
var (
	ErrAuth       = errors.New("authentication failed")
	ErrPermission = errors.New("permission denied")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("invalid input")
)

// Wire names of the domain error kinds.
const (
	KindAuth       = "AuthError"
	KindPermission = "PermissionError"
	KindNotFound   = "NotFoundError"
	KindConflict   = "ConflictError"
	KindValidation = "ValidationError"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrAuth, KindAuth},
	{ErrPermission, KindPermission},
	{ErrNotFound, KindNotFound},
	{ErrConflict, KindConflict},
	{ErrValidation, KindValidation},
}

// KindOf returns the wire kind of a domain error. ok is false for errors
// outside the chat taxonomy.
func KindOf(err error) (kind string, ok bool) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind, true
		}
	}
	return "", false
}

// ErrorForKind is the inverse of KindOf. It returns nil for unknown kinds.
func ErrorForKind(kind string) error {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}
