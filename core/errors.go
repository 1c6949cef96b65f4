package core

import (
	"fmt"
	"net/http"
)

// ApiErrorCode enumerates the fixed error codes surfaced by the read-path
// API.
type ApiErrorCode uint16

const (
	ErrInternalError      ApiErrorCode = 500
	ErrServiceUnavailable ApiErrorCode = 503
	ErrAccessDenied       ApiErrorCode = 401
	ErrForbidden          ApiErrorCode = 403
	ErrNotFound           ApiErrorCode = 1000
	ErrBadInput           ApiErrorCode = 1001
	ErrInvalidAddress     ApiErrorCode = 1002
	ErrNotEnoughBalance   ApiErrorCode = 1003
	ErrNeedMoreUtxos      ApiErrorCode = 1004
)

func (c ApiErrorCode) status() string {
	switch c {
	case ErrInternalError:
		return "internal_error"
	case ErrServiceUnavailable:
		return "service_unavailable"
	case ErrAccessDenied:
		return "access_denied"
	case ErrForbidden:
		return "access_forbidden"
	case ErrNotFound:
		return "not_found"
	case ErrBadInput:
		return "bad_input"
	case ErrInvalidAddress:
		return "invalid_address"
	case ErrNotEnoughBalance:
		return "not_enough_balance"
	case ErrNeedMoreUtxos:
		return "not_enough_utxos"
	default:
		return "internal_error"
	}
}

func (c ApiErrorCode) httpStatus() int {
	switch c {
	case ErrInternalError:
		return http.StatusInternalServerError
	case ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrAccessDenied:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadInput, ErrInvalidAddress, ErrNotEnoughBalance, ErrNeedMoreUtxos:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ApiError is the typed error envelope returned by every read-path handler,
// serialized as {"error": {code, status, message, details}}.
type ApiError struct {
	HTTPCode int               `json:"-"`
	Code     ApiErrorCode      `json:"code"`
	Status   string            `json:"status"`
	Message  string            `json:"message"`
	Details  map[string]string `json:"details,omitempty"`
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func newApiError(code ApiErrorCode, message string) *ApiError {
	return &ApiError{
		HTTPCode: code.httpStatus(),
		Code:     code,
		Status:   code.status(),
		Message:  message,
	}
}

// AccessDenied signals an invalid API key.
func AccessDenied() *ApiError { return newApiError(ErrAccessDenied, "") }

// Forbidden signals a blocked or suspended API key.
func Forbidden() *ApiError { return newApiError(ErrForbidden, "") }

// NotFound signals that the requested entity does not exist.
func NotFound() *ApiError { return newApiError(ErrNotFound, "") }

// BadInput signals malformed or missing request parameters.
func BadInput(message string) *ApiError { return newApiError(ErrBadInput, message) }

// InvalidAddress signals an address string that fails to parse for the
// configured network.
func InvalidAddress(message string) *ApiError { return newApiError(ErrInvalidAddress, message) }

// NotEnoughBalance signals a reservation request that exceeds the
// available, unreserved balance.
func NotEnoughBalance() *ApiError { return newApiError(ErrNotEnoughBalance, "") }

// NeedMoreUtxos signals a reservation request whose max_utxos cap prevented
// a solution from being found.
func NeedMoreUtxos() *ApiError { return newApiError(ErrNeedMoreUtxos, "") }

// InternalError wraps an unexpected failure (DB, RPC, etc.) as a 500.
func InternalError() *ApiError {
	return newApiError(ErrInternalError, "something went wrong")
}

// ServiceUnavailable signals a stale indexer or unreachable dependency.
func ServiceUnavailable(message string) *ApiError {
	return newApiError(ErrServiceUnavailable, message)
}

// ErrorResponse is the top-level JSON body an ApiError marshals into.
type ErrorResponse struct {
	Error *ApiError `json:"error"`
}
