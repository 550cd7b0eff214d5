package gatewayhttp

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/errs"
)

// DecodeJSON decodes the request body into v, rejecting unknown fields
// so a typo'd client field fails loudly instead of being silently
// ignored (§9: "define explicit request/response schemas per endpoint").
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.KindValidationError, "malformed request body", err)
	}
	return nil
}

// RespondJSON writes a success body with the standard request_id field
// mixed in (§4.H step 8, §6.1).
func RespondJSON(w http.ResponseWriter, r *http.Request, status int, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["request_id"] = RequestID(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// errorBody is the unified error envelope of §6.3.
type errorBody struct {
	ErrorCode string                 `json:"error_code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id"`
}

// RespondError translates any error into the unified error body,
// defaulting unrecognized errors to service_unavailable without
// echoing internal detail to the client (§7 propagation policy).
func RespondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	e, ok := errs.As(err)
	if !ok {
		log.ErrorContext(r.Context(), "unhandled_error", "error", err, "request_id", RequestID(r.Context()))
		e = errs.New(errs.KindServiceUnavailable, "an unexpected error occurred")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	_ = json.NewEncoder(w).Encode(errorBody{
		ErrorCode: string(e.Kind),
		Message:   e.Message,
		Details:   e.Details,
		RequestID: RequestID(r.Context()),
	})
}

func newRequestID() string {
	return uuid.NewString()
}
