package relay

import "fmt"

// TransportError is an HTTP or network level failure. A zero StatusCode means
// the request never produced a response.
type TransportError struct {
	Method     string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("relay %s: http status %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("relay %s: transport failure: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could succeed. Statuses in the
// 4xx range are terminal; everything else (5xx or no response at all) is
// worth retrying.
func (e *TransportError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// ApplicationError is an error object returned by the relay itself, or a
// protocol violation such as a response with neither result nor error. It is
// never retried: the relay has already classified the request as bad.
type ApplicationError struct {
	Method  string
	Code    int
	Message string
	Data    interface{}
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("relay %s: %s (code %d)", e.Method, e.Message, e.Code)
}

// RelayError wraps the last failure after all attempts are exhausted.
type RelayError struct {
	Method   string
	Attempts int
	Err      error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay %s failed after %d attempts: %v", e.Method, e.Attempts, e.Err)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}
