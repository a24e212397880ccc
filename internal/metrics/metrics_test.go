package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRefresh(t *testing.T) {
	okBefore := testutil.ToFloat64(RefreshTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(RefreshTotal.WithLabelValues("error"))

	RecordRefresh(2*time.Second, nil)
	RecordRefresh(time.Second, errors.New("boom"))

	if got := testutil.ToFloat64(RefreshTotal.WithLabelValues("ok")); got != okBefore+1 {
		t.Errorf("expected ok counter %v, got %v", okBefore+1, got)
	}
	if got := testutil.ToFloat64(RefreshTotal.WithLabelValues("error")); got != errBefore+1 {
		t.Errorf("expected error counter %v, got %v", errBefore+1, got)
	}
}

func TestRecordRSSFetch(t *testing.T) {
	before := testutil.ToFloat64(RSSFetchTotal.WithLabelValues("json_proxy", "error"))
	RecordRSSFetch("json_proxy", errors.New("timeout"))
	if got := testutil.ToFloat64(RSSFetchTotal.WithLabelValues("json_proxy", "error")); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}

func TestUpdateFusionGauges(t *testing.T) {
	UpdateFusionGauges(12, 8, 3)
	if got := testutil.ToFloat64(FusionNewsItems); got != 12 {
		t.Errorf("expected 12 news items, got %v", got)
	}
	if got := testutil.ToFloat64(FusionUnits); got != 8 {
		t.Errorf("expected 8 units, got %v", got)
	}
	if got := testutil.ToFloat64(FusionArrows); got != 3 {
		t.Errorf("expected 3 arrows, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordVerification(true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "situationroom_geocode_verifications_total") {
		t.Error("expected verification counter in exposition output")
	}
}
