package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordersUpdateCollectors(t *testing.T) {
	before := testutil.ToFloat64(ordersPlaced)
	RecordOrder("PERCENTAGE")
	RecordOrder("")
	assert.Equal(t, before+2, testutil.ToFloat64(ordersPlaced))
	assert.Equal(t, 1.0, testutil.ToFloat64(couponsApplied.WithLabelValues("PERCENTAGE")))

	RecordPoints("REVIEW", 25)
	RecordPoints("REVIEW", 0)
	assert.Equal(t, 25.0, testutil.ToFloat64(pointsAwarded.WithLabelValues("REVIEW")))

	RecordJob("coupons", errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(jobRuns.WithLabelValues("coupons", "false")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordHTTPRequest("GET", "/api/products", "200", 10*time.Millisecond)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `storefront_http_requests_total{method="GET",route="/api/products",status="200"}`)
}
