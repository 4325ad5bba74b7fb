package errutil

import "net/http"

// CoreStatus is a transport-agnostic status code carried by BaseError.
type CoreStatus string

const (
	StatusBadRequest             CoreStatus = "BAD_REQUEST"
	StatusValidationFailed       CoreStatus = "VALIDATION_FAILED"
	StatusInsufficientBalance    CoreStatus = "INSUFFICIENT_BALANCE"
	StatusUnauthorized           CoreStatus = "UNAUTHORIZED"
	StatusForbidden              CoreStatus = "FORBIDDEN"
	StatusNotFound               CoreStatus = "NOT_FOUND"
	StatusConflict               CoreStatus = "CONFLICT"
	StatusUnprocessableEntity    CoreStatus = "UNPROCESSABLE_ENTITY"
	StatusTooManyRequests        CoreStatus = "TOO_MANY_REQUESTS"
	StatusInternal               CoreStatus = "INTERNAL"
	StatusNotImplemented         CoreStatus = "NOT_IMPLEMENTED"
	StatusTimeout                CoreStatus = "TIMEOUT"
	StatusBadGateway             CoreStatus = "BAD_GATEWAY"
	StatusGatewayAuth            CoreStatus = "GATEWAY_AUTH_FAILED"
	StatusReconciliationRequired CoreStatus = "RECONCILIATION_REQUIRED"
	StatusUnknown                CoreStatus = "UNKNOWN"
)

// HTTPStatus converts the CoreStatus to its closest HTTP status code equivalent.
func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest, StatusValidationFailed, StatusInsufficientBalance:
		return http.StatusBadRequest
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusForbidden:
		return http.StatusForbidden
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	case StatusUnprocessableEntity:
		return http.StatusUnprocessableEntity
	case StatusTooManyRequests:
		return http.StatusTooManyRequests
	case StatusNotImplemented:
		return http.StatusNotImplemented
	case StatusTimeout:
		return http.StatusGatewayTimeout
	case StatusBadGateway, StatusGatewayAuth, StatusReconciliationRequired:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
