package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/photos/{container}/*", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/photos/album/2023/dog.jpg", http.NoBody))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rr.Code)
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/photos/{container}/*", "403"))
	if got < 1 {
		t.Errorf("http_requests_total = %f, want >= 1", got)
	}
}

func TestMiddleware_UnknownRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/known", func(w http.ResponseWriter, r *http.Request) {})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unknown", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", http.NoBody))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unknown", "404"))
	if after != before+1 {
		t.Errorf("unknown route count = %f, want %f", after, before+1)
	}
}

func TestDomainCounters(t *testing.T) {
	SearchAttemptsTotal.WithLabelValues("all-intent", "hit").Inc()
	if testutil.ToFloat64(SearchAttemptsTotal.WithLabelValues("all-intent", "hit")) < 1 {
		t.Error("search attempt counter not incremented")
	}
}
