package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures crossing component boundaries
type ErrorKind string

const (
	KindSourceUnavailable       ErrorKind = "SourceUnavailable"
	KindSourceMalformed         ErrorKind = "SourceMalformed"
	KindSourceAuth              ErrorKind = "SourceAuth"
	KindAuthorityTransient      ErrorKind = "AuthorityTransient"
	KindAuthorityDenied         ErrorKind = "AuthorityDenied"
	KindAuthorityNotFound       ErrorKind = "AuthorityNotFound"
	KindAuthorityMalformed      ErrorKind = "AuthorityMalformed"
	KindCircuitOpen             ErrorKind = "CircuitOpen"
	KindValidationRuleViolation ErrorKind = "ValidationRuleViolation"
	KindReportParseError        ErrorKind = "ReportParseError"
	KindReportWriteError        ErrorKind = "ReportWriteError"
	KindConfigInvalid           ErrorKind = "ConfigInvalid"
	KindUnknown                 ErrorKind = "Unknown"
)

// Error is a classified failure with the context needed for a halt record
type Error struct {
	Kind       ErrorKind
	Component  string
	Customer   string
	Stage      string
	BackupPath string
	// Retryable marks transient failures the retry combinator may repeat.
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Component != "" {
		msg += " [" + e.Component + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.BackupPath != "" {
		msg += fmt.Sprintf(" (backup preserved at %s)", e.BackupPath)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error for component
func NewError(kind ErrorKind, component string, err error) *Error {
	return &Error{Kind: kind, Component: component, Err: err}
}

// Errorf creates a classified error with a formatted message
func Errorf(kind ErrorKind, component, format string, args ...any) *Error {
	return &Error{Kind: kind, Component: component, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first classified error in err's chain
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether err is a classified transient failure
func IsRetryable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// WithContext fills in run context on a classified error without
// overwriting values set closer to the failure.
func WithContext(err error, customer, stage string) error {
	var ce *Error
	if !errors.As(err, &ce) {
		return &Error{Kind: KindUnknown, Customer: customer, Stage: stage, Err: err}
	}
	if ce.Customer == "" {
		ce.Customer = customer
	}
	if ce.Stage == "" {
		ce.Stage = stage
	}
	return err
}

// ErrorRecord is the single structured record emitted when a run halts
type ErrorRecord struct {
	Kind       ErrorKind `json:"kind"`
	Component  string    `json:"component,omitempty"`
	Customer   string    `json:"customer,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Error      string    `json:"error"`
	BackupPath string    `json:"backup_path,omitempty"`
}

// RecordOf builds the halt record for err
func RecordOf(err error) ErrorRecord {
	var ce *Error
	if !errors.As(err, &ce) {
		return ErrorRecord{Kind: KindUnknown, Error: err.Error()}
	}
	rec := ErrorRecord{
		Kind:       ce.Kind,
		Component:  ce.Component,
		Customer:   ce.Customer,
		Stage:      ce.Stage,
		BackupPath: ce.BackupPath,
	}
	if ce.Err != nil {
		rec.Error = ce.Err.Error()
	} else {
		rec.Error = string(ce.Kind)
	}
	return rec
}
