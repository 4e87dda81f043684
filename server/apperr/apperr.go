// Package apperr defines the error taxonomy shared by the game server.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code sent to clients.
type Code string

const (
	CodeWalletNotConnected Code = "WALLET_NOT_CONNECTED"
	CodeNotInitialized     Code = "NOT_INITIALIZED"
	CodeInvalidOperation   Code = "INVALID_OPERATION"
	CodeNotFound           Code = "NOT_FOUND"
	CodeWriteError         Code = "WRITE_ERROR"
	CodeLoadError          Code = "LOAD_ERROR"
	CodeBusy               Code = "BUSY"
	CodeUnknown            Code = "UNKNOWN_ERROR"
)

const unknownMessage = "An unknown error occurred"

// Error is a coded error carrying a user-facing message.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is checks.
var (
	ErrWalletNotConnected = New(CodeWalletNotConnected, "Wallet not connected")
	ErrNotInitialized     = New(CodeNotInitialized, "Player not initialized")
	ErrInvalidOperation   = New(CodeInvalidOperation, "Invalid operation")
	ErrNotFound           = New(CodeNotFound, "Not found")
	ErrWriteError         = New(CodeWriteError, "Write failed")
	ErrLoadError          = New(CodeLoadError, "Load failed")
	ErrBusy               = New(CodeBusy, "Another action is still pending")
)

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Message returns a human-readable message for notifications.
func Message(err error) string {
	if err == nil {
		return unknownMessage
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		return string(e.Code)
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return unknownMessage
}
