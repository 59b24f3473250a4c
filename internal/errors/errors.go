package errors

import (
	stderrors "errors"
	"fmt"
)

// AmanError is a coded error shared by the CLI, HTTP and MCP surfaces.
type AmanError struct {
	Code     string
	Message  string
	Category Category
	Severity Severity
	// Details are extra key-value context such as an entry id or a path.
	Details map[string]string
	Cause   error
	// Retryable marks failures of an upstream model or index that may
	// succeed on a later call.
	Retryable  bool
	Suggestion string
}

// Error implements the error interface.
func (e *AmanError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AmanError) Unwrap() error {
	return e.Cause
}

// Is matches any AmanError with the same code.
func (e *AmanError) Is(target error) bool {
	if t, ok := target.(*AmanError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail records key=value and returns e.
func (e *AmanError) WithDetail(key, value string) *AmanError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets the user hint and returns e.
func (e *AmanError) WithSuggestion(suggestion string) *AmanError {
	e.Suggestion = suggestion
	return e
}

// New derives category, severity and retryability from code.
func New(code string, message string, cause error) *AmanError {
	return &AmanError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap uses err's text as the message. A nil err yields nil.
func Wrap(code string, err error) *AmanError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// IOError reports a file that could not be read.
func IOError(message string, cause error) *AmanError {
	return New(ErrCodeFileNotFound, message, cause)
}

// InternalError reports a bug or an unexpected state.
func InternalError(message string, cause error) *AmanError {
	return New(ErrCodeInternal, message, cause)
}

// EmptyQueryError is returned before any retrieval work starts when the
// query or question is blank.
func EmptyQueryError() *AmanError {
	return New(ErrCodeQueryEmpty, "query must not be empty", nil).
		WithSuggestion(`Ask a question such as "What is Article 308?"`)
}

// As finds the first AmanError in err's chain.
func As(err error) (*AmanError, bool) {
	var ae *AmanError
	if stderrors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsRetryable reports whether the first AmanError in the chain is retryable.
func IsRetryable(err error) bool {
	if ae, ok := As(err); ok {
		return ae.Retryable
	}
	return false
}

// IsValidation reports whether err is a client input error.
func IsValidation(err error) bool {
	return GetCategory(err) == CategoryValidation
}

// GetCode returns the first AmanError's code, or "".
func GetCode(err error) string {
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return ""
}

// GetCategory returns the first AmanError's category, or "".
func GetCategory(err error) Category {
	if ae, ok := As(err); ok {
		return ae.Category
	}
	return ""
}
