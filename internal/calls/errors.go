package calls

import "errors"

var (
	// ErrArgument marks a malformed id, type, title or participant.
	ErrArgument = errors.New("calls: invalid argument")
	// ErrConflict marks a call slot already taken by a live or concurrent call.
	ErrConflict = errors.New("calls: conflict")
	ErrNotFound = errors.New("calls: not found")
	// ErrInvalidState marks a record expected in storage but missing.
	ErrInvalidState = errors.New("calls: invalid state")
	ErrStorage      = errors.New("calls: storage failure")

	// ErrDuplicateKey is returned by stores when an insert hits an existing key.
	// Wrap it in a *DuplicateKeyError to name the key.
	ErrDuplicateKey = errors.New("calls: duplicate key")
)

// Names of unique keys reported in DuplicateKeyError.
const (
	KeyCallID     = "call_id"
	KeyGroupOwner = "group_owner"
)

// DuplicateKeyError tells which unique key an insert violated.
type DuplicateKeyError struct {
	Key string
	Err error
}

func (e *DuplicateKeyError) Error() string {
	if e.Err != nil {
		return "calls: duplicate " + e.Key + ": " + e.Err.Error()
	}
	return "calls: duplicate " + e.Key
}

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

func duplicateKey(err error) (string, bool) {
	var d *DuplicateKeyError
	if errors.As(err, &d) {
		return d.Key, true
	}
	return "", false
}
