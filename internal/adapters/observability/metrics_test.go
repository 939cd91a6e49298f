package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"homematch/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record samples so counters are non-zero
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)
	observability.ObserveSearch("semantic", 30*time.Millisecond)

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	if !strings.Contains(out, "homematch_http_requests_total") {
		t.Fatalf("expected homematch_http_requests_total in output")
	}
	if !strings.Contains(out, "homematch_search_duration_seconds") {
		t.Fatalf("expected homematch_search_duration_seconds in output")
	}
}

func TestObserveExternalErrStatuses(t *testing.T) {
	reg := observability.InitRegistry()

	observability.ObserveExternalErr("embed", "/embed", nil, time.Millisecond)
	observability.ObserveExternalErr("embed", "/embed", io.ErrUnexpectedEOF, time.Millisecond)

	mh := observability.MetricsHandler(reg)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	out := rr.Body.String()
	if !strings.Contains(out, `status="ok"`) || !strings.Contains(out, `status="error"`) {
		t.Fatalf("expected ok and error status labels, got:\n%s", out)
	}
}
