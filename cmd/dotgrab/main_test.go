package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benithors/dotgrab/internal/metrics"
	"github.com/benithors/dotgrab/internal/notify"
	"github.com/benithors/dotgrab/internal/outcome"
	"github.com/benithors/dotgrab/internal/watchlist"
)

func runWithArgs(t *testing.T, args ...string) int {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DOTGRAB_CONFIG", "")

	old := os.Args
	defer func() { os.Args = old }()
	os.Args = append([]string{"dotgrab"}, args...)
	return run()
}

// Keep these exit codes stable: they matter in cron jobs and scripts.
func TestRun_NoArgs_Exit2(t *testing.T) {
	if got := runWithArgs(t); got != 2 {
		t.Fatalf("exit=%d, want 2", got)
	}
}

func TestRun_UnknownCommand_Exit2(t *testing.T) {
	if got := runWithArgs(t, "nope"); got != 2 {
		t.Fatalf("exit=%d, want 2", got)
	}
}

func TestRun_ExtraArgs_Exit2(t *testing.T) {
	if got := runWithArgs(t, "key", "extra"); got != 2 {
		t.Fatalf("exit=%d, want 2", got)
	}
}

func TestRun_Version_Exit0(t *testing.T) {
	if got := runWithArgs(t, "--version"); got != 0 {
		t.Fatalf("exit=%d, want 0", got)
	}
}

func TestRun_BadFormat_Exit2(t *testing.T) {
	if got := runWithArgs(t, "--format", "xml", "run", "a.com"); got != 2 {
		t.Fatalf("exit=%d, want 2", got)
	}
}

func TestRun_MissingConfig_Exit2(t *testing.T) {
	t.Setenv("OVH_APPLICATION_KEY", "")
	t.Setenv("OVH_APPLICATION_SECRET", "")
	if got := runWithArgs(t, "run", "--no-notify", "a.com"); got != 2 {
		t.Fatalf("exit=%d, want 2", got)
	}
}

func TestRun_MissingWatchList_Exit1(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.txt")
	if got := runWithArgs(t, "run", "--file", missing); got != 1 {
		t.Fatalf("exit=%d, want 1", got)
	}
}

func TestReadEntries(t *testing.T) {
	t.Parallel()

	entries, list, err := readEntries([]string{" a.com ", "", "b.com"}, "ignored.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com", "b.com"}, entries)
	assert.Nil(t, list)

	p := filepath.Join(t.TempDir(), "domains.txt")
	require.NoError(t, os.WriteFile(p, []byte("x.com\n\ny.com\n"), 0o600))
	entries, list, err = readEntries(nil, p, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.com", "", "y.com"}, entries)
	require.NotNil(t, list)
	assert.Equal(t, p, list.Path)
	assert.Equal(t, 2, nonBlank(entries))

	entries, list, err = readEntries(nil, "", nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Nil(t, list)
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	recs := []outcome.Record{
		{Domain: "a.com", Status: outcome.StatusUnavailable, State: "cart_created", Reason: "not available"},
		{Domain: "b.com", Status: outcome.StatusPurchased, State: "paid", OrderID: 42, Price: "8.39 €", PaymentMean: "paypal"},
	}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, formatPlain, recs))
	assert.Equal(t, "a.com\tunavailable\tcart_created\t\tnot available\nb.com\tpurchased\tpaid\t#42\t\n", buf.String())

	buf.Reset()
	require.NoError(t, writeReport(&buf, formatNDJSON, recs))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var got outcome.Record
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, recs[1], got)

	buf.Reset()
	require.NoError(t, writeReport(&buf, formatJSON, nil))
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	require.NoError(t, writeReport(&buf, formatTable, recs))
	assert.True(t, strings.HasPrefix(buf.String(), "DOMAIN"))
	assert.Contains(t, buf.String(), "#42")
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, ok := parseFormat("JSON", os.Stdout)
	assert.True(t, ok)
	assert.Equal(t, formatJSON, f)

	_, ok = parseFormat("xml", os.Stdout)
	assert.False(t, ok)
}

type captureNotifier struct {
	sends         int
	subject, body string
	err           error
}

func (c *captureNotifier) Name() string { return "capture" }

func (c *captureNotifier) Send(_ context.Context, subject, body string) error {
	c.sends++
	c.subject, c.body = subject, body
	return c.err
}

func newTestOptions(t *testing.T) *options {
	t.Helper()
	return &options{Timeout: time.Second, outFormat: formatPlain}
}

func TestFinish_FatalRunStillRewritesAndNotifies(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "domains.txt")
	require.NoError(t, os.WriteFile(p, []byte("a.com\nB.com\nc.com\n"), 0o600))
	list := &watchlist.File{Path: p}
	original, err := list.Load()
	require.NoError(t, err)

	tr := outcome.NewTracker()
	tr.Record(outcome.Record{Domain: "a.com", Name: "a.com", Status: outcome.StatusUnavailable})
	tr.Record(outcome.Record{Domain: "B.com", Name: "b.com", Status: outcome.StatusPurchased, OrderID: 7, Price: "9 €", PaymentMean: "paypal"})
	tr.Record(outcome.Record{Domain: "c.com", Name: "c.com", Status: outcome.StatusFailed, Reason: "payment failed: declined"})

	n := &captureNotifier{err: errors.New("smtp down")}
	res := &runResult{
		tracker:  tr,
		list:     list,
		original: original,
		notifier: n,
		metrics:  metrics.NewRun(),
		log:      newTestOptions(t).entry("run"),
		runErr:   errors.New("c.com: pay: declined"),
	}

	cmd := newRunCmd(newTestOptions(t))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())

	err = res.finish(cmd, newTestOptions(t))
	var ce *cliError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, exitFatal, ce.Code)

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "a.com\nc.com\n", string(b))

	assert.Equal(t, 1, n.sends)
	assert.Equal(t, notify.SubjectPurchased, n.subject)
	assert.Equal(t, "- B.com: Payment successful. Order #7 (9 €) paid with paypal. Congratulations on purchasing a new domain name!\n- c.com: payment failed: declined", n.body)
	assert.Equal(t, 3, strings.Count(out.String(), "\n"))
}

func TestFinish_NothingToReport(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "domains.txt")
	require.NoError(t, os.WriteFile(p, []byte("a.com\n"), 0o600))
	before, err := os.Stat(p)
	require.NoError(t, err)

	tr := outcome.NewTracker()
	tr.Record(outcome.Record{Domain: "a.com", Status: outcome.StatusUnavailable})
	n := &captureNotifier{}
	metricsFile := filepath.Join(t.TempDir(), "dotgrab.prom")
	o := newTestOptions(t)
	o.MetricsFile = metricsFile

	res := &runResult{
		tracker:  tr,
		list:     &watchlist.File{Path: p},
		original: []string{"a.com"},
		notifier: n,
		metrics:  metrics.NewRun(),
		log:      o.entry("run"),
	}
	cmd := newRunCmd(o)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetContext(context.Background())

	require.NoError(t, res.finish(cmd, o))
	assert.Zero(t, n.sends)

	after, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "watch list untouched without purchases")

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "dotgrab_last_run_timestamp_seconds")
}
