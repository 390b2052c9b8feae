package observability_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"poi_ingest/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record samples so the vectors have children to expose
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)
	observability.ObserveRejection("tabular", "invalid_id")
	observability.ObserveBatch("tabular", 2, nil, 3*time.Millisecond)
	observability.ObserveBatch("document", 0, errors.New("db down"), time.Millisecond)
	observability.ObserveJob("tree", "succeeded")

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, want := range []string{
		"poi_http_requests_total",
		`poi_rejections_total{format="tabular",reason="invalid_id"}`,
		`poi_batches_total{format="document",status="error"}`,
		`poi_records_total{format="tabular",outcome="accepted"}`,
		`poi_jobs_total{format="tree",status="succeeded"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in output", want)
		}
	}
}
