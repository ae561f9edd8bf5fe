package session

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every operation returns exactly one of these, possibly wrapped.
var (
	ErrNotInitialized      = errors.New("not initialized")
	ErrAlreadyInitialized  = errors.New("already initialized")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrNotSupported        = errors.New("not supported")
	ErrNotPermitted        = errors.New("operation not permitted")
	ErrCommunicationFailed = errors.New("communication with daemon failed")
	ErrOperationFailed     = errors.New("operation failed")
	ErrOutOfMemory         = errors.New("out of memory")
	ErrNotFound            = errors.New("not found")
)

// ResultCode is the numeric result carried in daemon replies and signals.
type ResultCode int32

const codeBase ResultCode = -0x01C60000

const (
	CodeNone               ResultCode = 0
	CodeNotPermitted       ResultCode = -1
	CodeOutOfMemory        ResultCode = -12
	CodePermissionDenied   ResultCode = -13
	CodeResourceBusy       ResultCode = -16
	CodeInvalidParameter   ResultCode = -22
	CodeConnectionTimedOut ResultCode = -110

	CodeNotInitialized      = codeBase | 0x01
	CodeCommunicationFailed = codeBase | 0x02
	CodeWiFiUsed            = codeBase | 0x03
	CodeMobileAPUsed        = codeBase | 0x04
	CodeConnectionFailed    = codeBase | 0x05
	CodeAuthFailed          = codeBase | 0x06
	CodeOperationFailed     = codeBase | 0x07
	CodeTooManyClients      = codeBase | 0x08
	CodeAlreadyInitialized  = codeBase | 0x09
	CodeConnectionCanceled  = codeBase | 0x10
	CodeNotSupported        = codeBase | 0x11
	CodeNotFound            = codeBase | 0x12
)

var codeNames = map[ResultCode]string{
	CodeNone:                "none",
	CodeNotPermitted:        "not permitted",
	CodeOutOfMemory:         "out of memory",
	CodePermissionDenied:    "permission denied",
	CodeResourceBusy:        "resource busy",
	CodeInvalidParameter:    "invalid parameter",
	CodeConnectionTimedOut:  "connection timed out",
	CodeNotInitialized:      "not initialized",
	CodeCommunicationFailed: "communication failed",
	CodeWiFiUsed:            "wifi in use",
	CodeMobileAPUsed:        "mobile ap in use",
	CodeConnectionFailed:    "connection failed",
	CodeAuthFailed:          "authentication failed",
	CodeOperationFailed:     "operation failed",
	CodeTooManyClients:      "too many clients",
	CodeAlreadyInitialized:  "already initialized",
	CodeConnectionCanceled:  "connection canceled",
	CodeNotSupported:        "not supported",
	CodeNotFound:            "not found",
}

func (c ResultCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("code(%d)", int32(c))
}

// OperationError reports a non-zero result returned by the daemon.
type OperationError struct {
	Op   string
	Code ResultCode
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: daemon returned %s (%d)", e.Op, e.Code, int32(e.Code))
}

// Is makes every OperationError match ErrOperationFailed.
func (e *OperationError) Is(target error) bool {
	return target == ErrOperationFailed
}

var sentinelCodes = []struct {
	err  error
	code ResultCode
}{
	{ErrNotInitialized, CodeNotInitialized},
	{ErrAlreadyInitialized, CodeAlreadyInitialized},
	{ErrInvalidParameter, CodeInvalidParameter},
	{ErrNotSupported, CodeNotSupported},
	{ErrNotPermitted, CodeNotPermitted},
	{ErrCommunicationFailed, CodeCommunicationFailed},
	{ErrOutOfMemory, CodeOutOfMemory},
	{ErrNotFound, CodeNotFound},
}

// Code maps err to the numeric code exposed to clients.
func Code(err error) ResultCode {
	if err == nil {
		return CodeNone
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Code
	}
	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.err) {
			return sc.code
		}
	}
	return CodeOperationFailed
}

// resultError turns a daemon result code into an error, nil for CodeNone.
func resultError(op string, code ResultCode) error {
	if code == CodeNone {
		return nil
	}
	return &OperationError{Op: op, Code: code}
}

func invalidParam(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

func notPermitted(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotPermitted, fmt.Sprintf(format, args...))
}
