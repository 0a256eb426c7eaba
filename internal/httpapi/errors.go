package httpapi

import "github.com/softmax/underwriting-gateway/internal/apierr"

// translateError maps any error surfaced by a handler to an HTTP status
// and a caller-facing detail string (spec §7). Errors that do not carry
// an apierr.Error default to a generic 500 with no internal detail
// leaked to the caller.
func translateError(err error) (status int, detail string) {
	if e, ok := apierr.As(err); ok {
		return e.Status(), e.Detail
	}
	return 500, "internal error"
}
