package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecords(t *testing.T) {
	c := New()
	c.Future(OutcomeResolved)
	c.Future(OutcomeResolved)
	c.Future(OutcomeIgnored)
	c.PageDelivered(3)
	c.PageDelivered(2)
	c.PageDiscarded()
	c.FetchStarted()
	c.FetchStarted()
	c.FetchDone()
	c.Offload("submit", 0.01)

	if got := testutil.ToFloat64(c.FuturesTotal.WithLabelValues(OutcomeResolved)); got != 2 {
		t.Errorf("resolved = %v", got)
	}
	if got := testutil.ToFloat64(c.PagesDelivered); got != 2 {
		t.Errorf("pages delivered = %v", got)
	}
	if got := testutil.ToFloat64(c.RowsBuffered); got != 5 {
		t.Errorf("rows buffered = %v", got)
	}
	if got := testutil.ToFloat64(c.InflightFetches); got != 1 {
		t.Errorf("inflight = %v", got)
	}
	if n := testutil.CollectAndCount(c.OffloadSeconds); n != 1 {
		t.Errorf("offload series = %d", n)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.Future(OutcomeFailed)
	c.PageDelivered(1)
	c.PageDiscarded()
	c.FetchStarted()
	c.FetchDone()
	c.Offload("prepare", 1)
	if c.Registry() != nil {
		t.Error("nil collector has a registry")
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	c := New()
	c.PageDiscarded()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "aiodb_pages_discarded_total 1") {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
}
