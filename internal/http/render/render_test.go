package render

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShapes(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		body   string
	}{
		{"json", func(w http.ResponseWriter) { JSON(w, http.StatusOK, map[string]string{"status": "ok"}) }, http.StatusOK, `{"status":"ok"}`},
		{"mensagem", func(w http.ResponseWriter) { ErrorMessage(w, http.StatusBadRequest, "Missing x-file-name header") }, http.StatusBadRequest, `{"error":{"message":"Missing x-file-name header"}}`},
		{"falha", func(w http.ResponseWriter) { Fault(w, http.StatusInternalServerError, "boom") }, http.StatusInternalServerError, `{"error":"boom"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.write(rec)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	MethodNotAllowed(rec, http.MethodPut)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "PUT", rec.Header().Get("Allow"))
	assert.JSONEq(t, `{"error":{"message":"Method Not Allowed"}}`, rec.Body.String())
}
