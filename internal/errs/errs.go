package errs

import (
	"errors"
	"fmt"
)

// Code 标识导出失败的类别
type Code string

const (
	CodeListingNotFound         Code = "LISTING_NOT_FOUND"
	CodeListingWaitTimeout      Code = "LISTING_WAIT_TIMEOUT"
	CodeSelectionTriggerMissing Code = "SELECTION_TRIGGER_MISSING"
	CodeDetailNotFound          Code = "DETAIL_NOT_FOUND"
	CodeRestorationFailure      Code = "RESTORATION_FAILURE"
	CodeStateCorrupt            Code = "STATE_CORRUPT"
	CodeStoreFailure            Code = "STORE_FAILURE"
)

// AppError 带错误码和底层原因
type AppError struct {
	Code    Code
	Message string
	Details string
	Cause   error
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Details != "" {
		msg += " - " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is 只比较错误码,下面的哨兵错误可以直接用于 errors.Is
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(format string, args ...any) *AppError {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

var (
	ErrListingNotFound         = New(CodeListingNotFound, "listing frame not found")
	ErrListingWaitTimeout      = New(CodeListingWaitTimeout, "listing did not appear before timeout")
	ErrSelectionTriggerMissing = New(CodeSelectionTriggerMissing, "selection trigger missing in listing")
	ErrDetailNotFound          = New(CodeDetailNotFound, "matching detail view not found")
	ErrRestorationFailure      = New(CodeRestorationFailure, "listing could not be restored")
	ErrStateCorrupt            = New(CodeStateCorrupt, "persisted state is corrupt")
	ErrStoreFailure            = New(CodeStoreFailure, "state store failure")
)

// CodeOf 返回错误链中第一个 AppError 的错误码,没有时返回空
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
