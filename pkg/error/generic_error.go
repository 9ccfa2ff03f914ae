package error

// GenericError is implemented by every typed error the REST layer knows how to
// turn into a response.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}
