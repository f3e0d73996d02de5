package wire

// Anthropic error envelope types.
const (
	ErrTypeInvalidRequest  = "invalid_request_error"
	ErrTypeAuthentication  = "authentication_error"
	ErrTypePermission      = "permission_error"
	ErrTypeNotFound        = "not_found_error"
	ErrTypeRequestTooLarge = "request_too_large"
	ErrTypeRateLimit       = "rate_limit_error"
	ErrTypeAPI             = "api_error"
	ErrTypeOverloaded      = "overloaded_error"

	// ErrTypeRouting is reported when no route or model mapping matches a
	// request. It is this proxy's own extension of the taxonomy.
	ErrTypeRouting = "routing_error"
)

// ErrorResponse is the Anthropic error envelope returned on every failure,
// and the payload of in-stream error events.
type ErrorResponse struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error class and a human-readable message.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorResponse builds an error envelope.
func NewErrorResponse(errType, message string) ErrorResponse {
	return ErrorResponse{Type: "error", Error: ErrorDetail{Type: errType, Message: message}}
}

// ErrorTypeForStatus maps an HTTP status code to the Anthropic error type a
// conforming server would report for it.
func ErrorTypeForStatus(status int) string {
	switch status {
	case 400:
		return ErrTypeInvalidRequest
	case 401:
		return ErrTypeAuthentication
	case 403:
		return ErrTypePermission
	case 404:
		return ErrTypeNotFound
	case 413:
		return ErrTypeRequestTooLarge
	case 429:
		return ErrTypeRateLimit
	case 500:
		return ErrTypeAPI
	case 503:
		return "service_unavailable_error"
	case 529:
		return ErrTypeOverloaded
	default:
		if status >= 500 {
			return ErrTypeAPI
		}
		return ErrTypeInvalidRequest
	}
}

// StatusForErrorType is the inverse mapping, used when an upstream reports
// an error type without a usable status code.
func StatusForErrorType(errType string) int {
	switch errType {
	case ErrTypeInvalidRequest:
		return 400
	case ErrTypeAuthentication:
		return 401
	case ErrTypePermission:
		return 403
	case ErrTypeNotFound:
		return 404
	case ErrTypeRequestTooLarge:
		return 413
	case ErrTypeRateLimit:
		return 429
	case ErrTypeOverloaded:
		return 529
	case "service_unavailable_error":
		return 503
	default:
		return 500
	}
}
