package resultfeed

import "fmt"

// ConfigError means the client cannot call the feed at all (missing token).
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "result feed config: " + e.Msg }

// HTTPError is a non-2xx response, or a transport failure when Status is 0.
type HTTPError struct {
	Status int
	Body   string
	Err    error
}

func (e *HTTPError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("result feed unavailable: %v", e.Err)
	}
	return fmt.Sprintf("result feed returned status=%d", e.Status)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// ParseError is a response body that is not the expected JSON.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid JSON from result feed %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
