package platform

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("platform: not found")
	ErrUnauthorized = errors.New("platform: unauthorized")
	ErrForbidden    = errors.New("platform: forbidden")
	ErrRejected     = errors.New("platform: request rejected")
	ErrBadPayload   = errors.New("platform: malformed payload")
	ErrMissingID    = errors.New("platform: external id is required")
)

// UpstreamError carries where a platform call failed. Status is 0 for
// transport failures.
type UpstreamError struct {
	Service  string
	Endpoint string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Service, e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
