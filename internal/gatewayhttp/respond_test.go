package gatewayhttp_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"known":"x","surprise":"y"}`))
	var v struct {
		Known string `json:"known"`
	}
	err := gatewayhttp.DecodeJSON(r, &v)
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindValidationError, e.Kind)
}

func TestRespondJSON_IncludesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(gatewayhttp.WithRequestID(req.Context(), "req-123"))
	rec := httptest.NewRecorder()

	gatewayhttp.RespondJSON(rec, req, http.StatusOK, map[string]interface{}{"ok": true})

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "req-123", body["request_id"])
	assert.Equal(t, true, body["ok"])
}

func TestRespondError_KnownKindUsesItsStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	gatewayhttp.RespondError(rec, req, discardLogger(), errs.New(errs.KindAccountLocked, "locked out"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "account_locked", body["error_code"])
}

func TestRespondError_UnrecognizedErrorDefaultsToServiceUnavailable(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	gatewayhttp.RespondError(rec, req, discardLogger(), io.ErrUnexpectedEOF)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "service_unavailable", body["error_code"])
	assert.NotContains(t, bytes.NewBuffer(rec.Body.Bytes()).String(), "unexpected EOF")
}
