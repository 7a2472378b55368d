package query

import (
	"errors"
	"fmt"
)

// Stable user-facing error codes.
const (
	CodePageRequired          = "QRY_00001_PAGE_REQUIRED"
	CodePageSizeRequired      = "QRY_00002_PAGE_SIZE_REQUIRED"
	CodeFilterParamsRequired  = "QRY_00003_FILTER_PARAMS_REQUIRED"
	CodeOrderParamsRequired   = "QRY_00004_ORDER_PARAMS_REQUIRED"
	CodeInvalidPage           = "QRY_00005_INVALID_PAGE"
	CodeInvalidPageSize       = "QRY_00006_INVALID_PAGE_SIZE"
	CodeMalformedFilterParams = "QRY_00007_MALFORMED_FILTER_PARAMS"
	CodeMalformedOrderParams  = "QRY_00008_MALFORMED_ORDER_PARAMS"
	CodeNotANumber            = "QRY_00009_NOT_A_NUMBER"
	CodeInvalidDate           = "QRY_00010_INVALID_DATE"
	CodeInvalidFilterValue    = "QRY_00011_INVALID_FILTER_VALUE"
)

// UserError is a recoverable input error reported to the caller with a
// machine-readable code.
type UserError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *UserError) Error() string {
	return e.Code + ": " + e.Message
}

func userErrorf(code, format string, args ...any) *UserError {
	return &UserError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsUserError unwraps err to a *UserError if it carries one.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
