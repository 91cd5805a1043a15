package reaper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"backoffice/config"
	"backoffice/internal/infra/metrics"
	"backoffice/internal/usecase"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

type stubSessions struct {
	usecase.SessionUsecase

	calls     chan time.Duration
	result    *usecase.ReapResult
	err       error
	reapedNow time.Time
}

func (s *stubSessions) Reap(_ context.Context, now time.Time, retention time.Duration) (*usecase.ReapResult, error) {
	s.reapedNow = now
	s.calls <- retention

	return s.result, s.err
}

func newTestReaper(t *testing.T, cfg *config.ReaperConfig, sessions *stubSessions) (*reaper, *metrics.Metrics, *fxtest.Lifecycle) {
	t.Helper()

	lc := fxtest.NewLifecycle(t)
	m := metrics.New()
	d := New(Params{
		Lc:       lc,
		Cfg:      &config.Config{Reaper: cfg},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sessions: sessions,
		Metrics:  m,
	})

	return d.(*reaper), m, lc
}

func TestReaper_SweepsOnEveryTick(t *testing.T) {
	sessions := &stubSessions{
		calls:  make(chan time.Duration, 8),
		result: &usecase.ReapResult{Sessions: 3, Challenges: 2},
	}
	r, m, lc := newTestReaper(t, &config.ReaperConfig{
		Enabled:          true,
		Interval:         10 * time.Millisecond,
		RevokedRetention: time.Hour,
	}, sessions)
	lc.RequireStart()

	done := make(chan error, 1)
	go func() { done <- r.Serve(context.Background()) }()

	for range 2 {
		select {
		case retention := <-sessions.calls:
			assert.Equal(t, time.Hour, retention)
		case <-time.After(time.Second):
			t.Fatal("reaper did not tick")
		}
	}

	lc.RequireStop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop with the app")
	}

	assert.GreaterOrEqual(t, reapedRows(t, m, "sessions"), 6.0)
}

func TestReaper_FailureKeepsRunning(t *testing.T) {
	sessions := &stubSessions{calls: make(chan time.Duration, 1), err: errors.New("db down")}
	r, _, _ := newTestReaper(t, &config.ReaperConfig{Enabled: true}, sessions)
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	r.sweep(context.Background())

	assert.Equal(t, 24*time.Hour, <-sessions.calls)
	assert.Equal(t, fixed, sessions.reapedNow)
}

func TestReaper_DisabledReturnsImmediately(t *testing.T) {
	r, _, _ := newTestReaper(t, nil, &stubSessions{})

	assert.NoError(t, r.Serve(context.Background()))
	assert.Equal(t, 10*time.Minute, r.interval)
}

func reapedRows(t *testing.T, m *metrics.Metrics, table string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "backoffice_reaped_rows_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "table" && label.GetValue() == table {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}

	return 0
}
