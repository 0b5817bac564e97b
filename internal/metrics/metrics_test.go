package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordStoreOpCountsErrors(t *testing.T) {
	before := testutil.ToFloat64(StoreErrors.WithLabelValues("test", "get"))

	RecordStoreOp("test", "get", time.Millisecond, nil)
	RecordStoreOp("test", "get", time.Millisecond, errors.New("boom"))

	after := testutil.ToFloat64(StoreErrors.WithLabelValues("test", "get"))
	if after-before != 1 {
		t.Errorf("error count delta = %v, want 1", after-before)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/health", "200"))
	RecordHTTPRequest("GET", "/health", 200, 2*time.Millisecond)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/health", "200"))
	if after-before != 1 {
		t.Errorf("request count delta = %v, want 1", after-before)
	}
}
