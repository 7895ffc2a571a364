package httptransport

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCORSShortCircuitsPreflight(t *testing.T) {
	called := false
	handler := CORS("https://portal.example")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/v1/attendance", nil))

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "https://portal.example", rr.Header().Get("Access-Control-Allow-Origin"))
	require.False(t, called)
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/attendance", nil))

	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, buf.String(), "POST /v1/attendance 409")
}
