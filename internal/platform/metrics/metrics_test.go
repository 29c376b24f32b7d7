package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pollstack/internal/platform/txcoord"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := New()
	stores := []txcoord.StoreID{txcoord.StoreUsers, txcoord.StoreResearch}

	r.UnitAttempted(stores)
	r.UnitAttempted(stores)
	r.UnitRetried(stores, txcoord.KindConflict)
	r.PartialCommit(txcoord.StoreResearch, []txcoord.StoreID{txcoord.StoreUsers})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.unitAttempts.WithLabelValues("users+research")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.unitRetries.WithLabelValues("users+research", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.partialCommits.WithLabelValues("research")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.LedgerAppended("SIGNUP_EVENT")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `pollstack_ledger_entries_total{kind="SIGNUP_EVENT"} 1`))
}
