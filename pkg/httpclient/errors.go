package httpclient

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/shinshin4n4n/tube-review-sub001/pkg/errors"
)

// MapStatus translates an upstream HTTP failure into an application error.
// Upstream 404s become NotFound for resource/id; authorization, quota and
// server-side failures all surface as 503 since the caller cannot fix them.
func MapStatus(upstream string, status int, message, resource, id string) error {
	qualified := fmt.Sprintf("%s: %s", upstream, message)
	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(resource, id)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusTooManyRequests,
		status >= 500:
		return apperrors.ServiceUnavailable(upstream+" unavailable",
			fmt.Errorf("status %d: %s", status, message))
	default:
		return fmt.Errorf("%s returned status %d: %s", upstream, status, message)
	}
}

// MapTransportError wraps a call that never produced a status code.
func MapTransportError(upstream string, err error) error {
	if errors.Is(err, ErrCircuitOpen) {
		return apperrors.ServiceUnavailable(upstream+" temporarily disabled", err)
	}
	return apperrors.ServiceUnavailable(upstream+" unavailable", err)
}
