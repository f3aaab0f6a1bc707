package rules

import (
	"errors"
	"fmt"
)

// Error codes for rule loading. Stable; surfaced by the check command.
const (
	ErrCodeGeneric          = "E001" // Generic/unknown error
	ErrCodeReadFailed       = "E002" // File missing or unreadable
	ErrCodeUnsupported      = "E003" // Unknown file extension
	ErrCodeParseFailed      = "E004" // YAML/JSON/CUE syntax error
	ErrCodeUnknownSection   = "E005" // Top-level key other than connect/disconnect
	ErrCodeNonString        = "E006" // Rule key or value is not a string
	ErrCodeInvalidPattern   = "E007" // Pattern failed to compile
	ErrCodeMalformedEntry   = "E008" // Sequence entry missing from/to
	ErrCodeMalformedSection = "E009" // Section is neither a mapping nor a sequence
)

// LoadError is a configuration error found while loading a rule file.
// Configuration errors are fatal at startup.
type LoadError struct {
	Code    string
	Path    string // File path, empty for in-memory sources
	Where   string // Location inside the document, e.g. "connect[2]"
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Where != "" {
		msg = e.Where + ": " + msg
	}
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsLoadError reports whether err is (or wraps) a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// ErrorCode extracts the LoadError code from err, or ErrCodeGeneric.
func ErrorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}
