package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()

	done := r.Start()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.inflight))
	done(OutcomeCleared)
	r.Start()(OutcomeTransport)
	r.Entry("ok")
	r.Entry("ok")
	r.Entry("error")
	r.Failure("status")

	assert.Equal(t, 0.0, testutil.ToFloat64(r.inflight))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues(OutcomeCleared)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues(OutcomeTransport)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.entries.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failures.WithLabelValues("status")))
}

func TestNilRecorderIsInert(t *testing.T) {
	var r *Recorder
	r.Start()(OutcomeCleared)
	r.Entry("ok")
	r.Failure("x")
	require.NoError(t, r.WriteTextfile("/nonexistent/should/not/be/touched"))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.Start()(OutcomeRejected)

	path := filepath.Join(t.TempDir(), "hlxpurge.prom")
	require.NoError(t, r.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), `hlxpurge_requests_total{outcome="rejected"} 1`))
}
