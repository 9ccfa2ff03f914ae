package error

import "net/http"

// TimeoutError marks an external process that did not answer within its budget.
type TimeoutError string

func (err TimeoutError) Error() string {
	return string(err)
}

func (err TimeoutError) ErrCode() string {
	return "GATEWAY_TIMEOUT"
}

func (err TimeoutError) StatusCode() int {
	return http.StatusGatewayTimeout
}

// ExternalServiceError marks a failing external tool (missing binary, non-zero exit).
type ExternalServiceError string

func (err ExternalServiceError) Error() string {
	return string(err)
}

func (err ExternalServiceError) ErrCode() string {
	return "EXTERNAL_SERVICE_ERROR"
}

func (err ExternalServiceError) StatusCode() int {
	return http.StatusBadGateway
}

type InternalServerError string

func (err InternalServerError) Error() string {
	return string(err)
}

func (err InternalServerError) ErrCode() string {
	return "INTERNAL_SERVER_ERROR"
}

func (err InternalServerError) StatusCode() int {
	return http.StatusInternalServerError
}
