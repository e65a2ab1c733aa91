package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordResolve(t *testing.T) {
	before := testutil.ToFloat64(resolveTotal.WithLabelValues("ticket", "ok"))
	RecordResolve("ticket", "ok")
	RecordResolve("ticket", "ok")
	assert.Equal(t, before+2, testutil.ToFloat64(resolveTotal.WithLabelValues("ticket", "ok")))
}

func TestRecordReplies(t *testing.T) {
	before := testutil.ToFloat64(repliesTotal.WithLabelValues("passive"))
	RecordReplies("passive", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(repliesTotal.WithLabelValues("passive")))
}

func TestRecordConfigReload(t *testing.T) {
	before := testutil.ToFloat64(configReloadsTotal.WithLabelValues("error"))
	RecordConfigReload(false)
	assert.Equal(t, before+1, testutil.ToFloat64(configReloadsTotal.WithLabelValues("error")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordMessage("query")
	ObserveFetch("wiki", 0.2)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "trackref_messages_total")
	assert.Contains(t, string(body), "trackref_fetch_duration_seconds")
}
