package domain

import "fmt"

// FetchError is a transport or malformed-response failure talking to the HR
// backend. The cycle that hit it leaves state untouched.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CorruptStateError means persisted state could not be read back.
type CorruptStateError struct {
	Source string
	Err    error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state in %s: %v", e.Source, e.Err)
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}
