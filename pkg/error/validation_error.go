package error

import "net/http"

type ValidationError string

func (err ValidationError) Error() string {
	return string(err)
}

func (err ValidationError) ErrCode() string {
	return "VALIDATION_ERROR"
}

func (err ValidationError) StatusCode() int {
	return http.StatusBadRequest
}

// PayloadTooLargeError is returned when downloaded media exceeds a size limit.
type PayloadTooLargeError string

func (err PayloadTooLargeError) Error() string {
	return string(err)
}

func (err PayloadTooLargeError) ErrCode() string {
	return "PAYLOAD_TOO_LARGE"
}

func (err PayloadTooLargeError) StatusCode() int {
	return http.StatusRequestEntityTooLarge
}
