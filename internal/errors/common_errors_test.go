package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{"without cause", NewAppValidationError("bad range"), "[VALIDATION] bad range"},
		{"with cause", NewNetworkError("export fetch", errors.New("dial tcp: timeout")), "[NETWORK] export fetch: dial tcp: timeout"},
		{"not found", NewNotFoundError("source demo"), "[NOT_FOUND] source demo not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppError_UnwrapAndTypeOf(t *testing.T) {
	root := errors.New("root cause")
	err := fmt.Errorf("service: %w", NewSourceError("all sources failed", root))

	assert.ErrorIs(t, err, root)

	typ, ok := TypeOf(err)
	assert.True(t, ok)
	assert.Equal(t, ErrTypeSource, typ)

	_, ok = TypeOf(root)
	assert.False(t, ok)
}

func TestAppError_WithContext(t *testing.T) {
	err := NewParsingError("bad workbook", nil).
		WithContext("path", "ledger.xlsx").
		WithContext("sheet", 0)

	assert.Equal(t, "ledger.xlsx", err.Context["path"])
	assert.Equal(t, 0, err.Context["sheet"])

	bare := &AppError{Type: ErrTypeConfig}
	bare.WithContext("key", "value")
	assert.Equal(t, "value", bare.Context["key"])
}

func TestHelpersSetType(t *testing.T) {
	tests := []struct {
		err  *AppError
		want ErrorType
	}{
		{NewSourceError("x", nil), ErrTypeSource},
		{NewNetworkError("x", nil), ErrTypeNetwork},
		{NewParsingError("x", nil), ErrTypeParsing},
		{NewNoDataError("x", nil), ErrTypeNoData},
		{NewConfigError("x", nil), ErrTypeConfig},
		{NewAppValidationError("x"), ErrTypeValidation},
		{NewNotFoundError("x"), ErrTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Type)
			assert.NotNil(t, tt.err.Context)
		})
	}
}

func TestAPIError(t *testing.T) {
	err := ErrValidation("mode", "unknown payment mode")
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "Request validation failed", err.Error())
	assert.Equal(t, ValidationError{Field: "mode", Message: "unknown payment mode"}, err.Details)
	assert.Equal(t, "VALIDATION_FAILED", err.ErrorCode)
}

func TestAPIError_Render(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	require.NoError(t, render.Render(rec, req, ErrServiceUnavailable))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SERVICE_UNAVAILABLE", body.ErrorCode)
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusServiceUnavailable, TypeNoData, "No Ledger Data", "", "/api/ledger").
		WithExtension("trace_id", "abc").
		WithExtension("status", 999)

	b, err := json.Marshal(pd)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"type": "/errors/ledger/no-data",
		"title": "No Ledger Data",
		"status": 503,
		"instance": "/api/ledger",
		"trace_id": "abc"
	}`, string(b))
}

func TestProblemDetails_WithExtensionOnZeroValue(t *testing.T) {
	pd := &ProblemDetails{Status: http.StatusBadRequest}
	pd.WithExtension("k", "v")
	assert.Equal(t, "v", pd.Extensions["k"])
}
