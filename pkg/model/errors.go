package model

import "fmt"

// DataError reports a malformed or colliding authored entry. It is fatal for
// that entry only.
type DataError struct {
	Index  int    // position in the authored list
	TimeID string // empty when the ID could not be derived
	Reason string
}

func (e *DataError) Error() string {
	if e.TimeID == "" {
		return fmt.Sprintf("entry #%d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("entry #%d (%s): %s", e.Index, e.TimeID, e.Reason)
}

// LookupError reports a markup target that names a missing entry or an
// out-of-range variant.
type LookupError struct {
	TimeID  string
	Variant int
	Reason  string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s:%d: %s", e.TimeID, e.Variant, e.Reason)
}

// SerializationError reports a target list or unlock key that could not be
// decoded.
type SerializationError struct {
	Input string
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Input, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
