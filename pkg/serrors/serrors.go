package serrors

import "fmt"

// Error is a coded error suitable for API responses and sentinel comparisons.
type Error struct {
	Code    string
	Message string
	DocURL  string
}

func NewError(code, message, docURL string) *Error {
	return &Error{Code: code, Message: message, DocURL: docURL}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
