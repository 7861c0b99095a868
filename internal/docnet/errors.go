package docnet

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound         = errors.New("stream not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotAuthenticated = errors.New("client is not authenticated")
	ErrUnknownAlias     = errors.New("unknown directory alias")
)

// HTTPError is a non-2xx node response.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("node: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("node: %s: %s", http.StatusText(e.Status), e.Message)
}

func (e *HTTPError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return nil
}
