package errors

type HTTPError struct {
	Code       int
	Message    string
	StatusCode int
	// Headers are written alongside the error body, e.g. WWW-Authenticate on 401.
	Headers map[string]string
}

func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

func (e *HTTPError) WithStatus(statusCode int) *HTTPError {
	e.StatusCode = statusCode
	return e
}

func (e *HTTPError) WithHeader(key, value string) *HTTPError {
	if e.Headers == nil {
		e.Headers = make(map[string]string)
	}
	e.Headers[key] = value
	return e
}

func (e HTTPError) Error() string {
	return e.Message
}
