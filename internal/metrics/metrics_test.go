package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Counters(t *testing.T) {
	t.Parallel()

	m := NewRun()
	m.RecordDomain("unavailable")
	m.RecordDomain("unavailable")
	m.RecordDomain("purchased")
	m.RecordStep("checkout", 20*time.Millisecond, errors.New("boom"))
	m.RecordStep("pay", 10*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.domains.WithLabelValues("unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.domains.WithLabelValues("purchased")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gatewayErrors.WithLabelValues("checkout")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.gatewayErrors.WithLabelValues("pay")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.stepDuration))
}

func TestRun_WriteTextfile(t *testing.T) {
	t.Parallel()

	m := NewRun()
	m.RecordDomain("failed")
	m.Finish(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "dotgrab.prom")
	require.NoError(t, m.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.True(t, strings.Contains(out, `dotgrab_domains_processed_total{status="failed"} 1`), out)
	assert.Contains(t, out, "dotgrab_last_run_timestamp_seconds 1.7e+09")
}
