package instagram

import "fmt"

// ErrorType classifies failures talking to Instagram so handlers can give
// the user a distinguishing message.
type ErrorType string

const (
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeLoginRequired ErrorType = "login_required"
	ErrorTypePrivate       ErrorType = "private"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeParsing       ErrorType = "parsing"
	ErrorTypeServerError   ErrorType = "server_error"
)

// Error represents an Instagram API error.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("instagram %s error (code %d): %s", e.Type, e.Code, e.Message)
}

// TypeOf returns the ErrorType of err, or empty when err is not an
// instagram error.
func TypeOf(err error) ErrorType {
	if igErr, ok := err.(*Error); ok {
		return igErr.Type
	}
	return ""
}
