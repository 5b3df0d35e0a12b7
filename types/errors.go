package types

import (
	"errors"
	"fmt"
)

// ParseErrorKind classifies text decoding failures.
type ParseErrorKind string

const (
	ParseErrorHexDecode     ParseErrorKind = "HEX_DECODE"
	ParseErrorInvalidLength ParseErrorKind = "INVALID_LENGTH"
)

var (
	// ErrHexDecode matches any ParseError of kind ParseErrorHexDecode.
	ErrHexDecode = &ParseError{Kind: ParseErrorHexDecode}
	// ErrInvalidLength matches any ParseError of kind ParseErrorInvalidLength.
	ErrInvalidLength = &ParseError{Kind: ParseErrorInvalidLength}

	ErrTimeLockOverflow = errors.New("time lock does not fit in 64 bits")
	ErrAmountOverflow   = errors.New("amount does not fit in 64 bits")
	ErrNilValue         = errors.New("nil value")
)

// ParseError is returned by the hex parsers.
type ParseError struct {
	Kind  ParseErrorKind
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse error (%s)", e.Kind)
	}
	return fmt.Sprintf("parse error (%s) for %q: %v", e.Kind, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is matches on Kind so the package sentinels work with errors.Is.
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// BridgeError is a coded library error (configuration, unsupported networks).
type BridgeError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e BridgeError) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrUnsupportedNetwork = "UNSUPPORTED_NETWORK"
	ErrConfigError        = "CONFIG_ERROR"
	ErrStoreError         = "STORE_ERROR"
)
