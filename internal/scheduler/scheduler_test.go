package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/heraldhq/herald/internal/agent"
)

type runnerFunc func(ctx context.Context, kind agent.JobKind) (agent.Outcome, error)

func (f runnerFunc) Run(ctx context.Context, kind agent.JobKind) (agent.Outcome, error) {
	return f(ctx, kind)
}

type callLog struct {
	mu    sync.Mutex
	kinds []agent.JobKind
}

func (c *callLog) add(k agent.JobKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, k)
}

func (c *callLog) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.kinds)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func jobByKind(t *testing.T, s *Scheduler, kind agent.JobKind) JobStatus {
	t.Helper()
	for _, j := range s.Jobs() {
		if j.Kind == kind {
			return j
		}
	}
	t.Fatalf("job %s not listed", kind)
	return JobStatus{}
}

func TestNewRegistersDefaults(t *testing.T) {
	r := runnerFunc(func(context.Context, agent.JobKind) (agent.Outcome, error) {
		return agent.OutcomeSkipped, nil
	})
	s, err := New(r, nil, Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	jobs := s.Jobs()
	if len(jobs) != len(agent.Kinds()) {
		t.Fatalf("listed %d jobs, want %d", len(jobs), len(agent.Kinds()))
	}
	defaults := DefaultSchedules()
	for i, kind := range agent.Kinds() {
		j := jobs[i]
		if j.Kind != kind {
			t.Fatalf("jobs[%d] = %s, want %s", i, j.Kind, kind)
		}
		if !j.Enabled {
			t.Fatalf("%s not enabled by default", kind)
		}
		if j.Spec != defaults[kind].Spec {
			t.Fatalf("%s spec = %q, want %q", kind, j.Spec, defaults[kind].Spec)
		}
		if j.State != StateIdle {
			t.Fatalf("%s state = %q, want idle", kind, j.State)
		}
		if j.LastFiredAt != nil {
			t.Fatalf("%s has a last fired time before any firing", kind)
		}
	}
}

func TestNewAcceptsZonePrefix(t *testing.T) {
	r := runnerFunc(func(context.Context, agent.JobKind) (agent.Outcome, error) {
		return agent.OutcomeSkipped, nil
	})
	_, err := New(r, nil, Options{Schedules: map[agent.JobKind]Schedule{
		agent.JobMorningDigest: {Spec: "CRON_TZ=UTC 0 7 * * *", Enabled: true},
	}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	r := runnerFunc(func(context.Context, agent.JobKind) (agent.Outcome, error) {
		return agent.OutcomeSkipped, nil
	})
	_, err := New(r, nil, Options{Schedules: map[agent.JobKind]Schedule{
		agent.JobKind("bogus"): {Spec: "* * * * *", Enabled: true},
	}})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestNewRejectsBadSpec(t *testing.T) {
	r := runnerFunc(func(context.Context, agent.JobKind) (agent.Outcome, error) {
		return agent.OutcomeSkipped, nil
	})
	_, err := New(r, nil, Options{Schedules: map[agent.JobKind]Schedule{
		agent.JobMorningDigest: {Spec: "every tuesday", Enabled: true},
	}})
	if err == nil {
		t.Fatal("expected error for bad cron spec")
	}
}

func TestRunNowRecordsOutcome(t *testing.T) {
	calls := &callLog{}
	r := runnerFunc(func(_ context.Context, kind agent.JobKind) (agent.Outcome, error) {
		calls.add(kind)
		return agent.OutcomeDelivered, nil
	})
	s, err := New(r, nil, Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := s.RunNow(agent.JobUrgencyCheck); err != nil {
		t.Fatalf("run now: %v", err)
	}
	waitFor(t, "firing to finish", func() bool {
		j := jobByKind(t, s, agent.JobUrgencyCheck)
		return j.State == StateIdle && j.LastOutcome == agent.OutcomeDelivered
	})
	if calls.count() != 1 {
		t.Fatalf("runner ran %d times, want 1", calls.count())
	}
	j := jobByKind(t, s, agent.JobUrgencyCheck)
	if j.LastFiredAt == nil {
		t.Fatal("last fired time not recorded")
	}
	if j.LastError != "" {
		t.Fatalf("last error = %q, want empty", j.LastError)
	}
}

func TestRunNowUnknownKind(t *testing.T) {
	r := runnerFunc(func(context.Context, agent.JobKind) (agent.Outcome, error) {
		return agent.OutcomeSkipped, nil
	})
	s, err := New(r, nil, Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.RunNow(agent.JobKind("bogus")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestOverlappingFiringSkipped(t *testing.T) {
	calls := &callLog{}
	release := make(chan struct{})
	r := runnerFunc(func(_ context.Context, kind agent.JobKind) (agent.Outcome, error) {
		calls.add(kind)
		<-release
		return agent.OutcomeDelivered, nil
	})
	s, err := New(r, nil, Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := s.RunNow(agent.JobFocusNudge); err != nil {
		t.Fatalf("run now: %v", err)
	}
	waitFor(t, "first firing to start", func() bool { return calls.count() == 1 })

	// Second trigger while the first is still running: skipped.
	if err := s.RunNow(agent.JobFocusNudge); err != nil {
		t.Fatalf("second run now: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)

	waitFor(t, "firing to finish", func() bool {
		return jobByKind(t, s, agent.JobFocusNudge).State == StateIdle
	})
	if calls.count() != 1 {
		t.Fatalf("runner ran %d times, want 1", calls.count())
	}
}

func TestDisabledKindStillFiresManually(t *testing.T) {
	calls := &callLog{}
	r := runnerFunc(func(_ context.Context, kind agent.JobKind) (agent.Outcome, error) {
		calls.add(kind)
		return agent.OutcomeSkipped, nil
	})
	s, err := New(r, nil, Options{Schedules: map[agent.JobKind]Schedule{
		agent.JobFocusNudge: {Enabled: false},
	}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	j := jobByKind(t, s, agent.JobFocusNudge)
	if j.Enabled {
		t.Fatal("focus nudge should be disabled")
	}
	if j.Spec != DefaultSchedules()[agent.JobFocusNudge].Spec {
		t.Fatalf("empty spec not defaulted, got %q", j.Spec)
	}

	if err := s.RunNow(agent.JobFocusNudge); err != nil {
		t.Fatalf("run now: %v", err)
	}
	waitFor(t, "manual firing", func() bool { return calls.count() == 1 })
}

func TestFiringTimeout(t *testing.T) {
	r := runnerFunc(func(ctx context.Context, _ agent.JobKind) (agent.Outcome, error) {
		<-ctx.Done()
		return agent.OutcomeFailed, ctx.Err()
	})
	s, err := New(r, nil, Options{Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := s.RunNow(agent.JobWeeklyReview); err != nil {
		t.Fatalf("run now: %v", err)
	}
	waitFor(t, "timeout to surface", func() bool {
		return jobByKind(t, s, agent.JobWeeklyReview).LastError != ""
	})
	j := jobByKind(t, s, agent.JobWeeklyReview)
	if j.LastOutcome != agent.OutcomeFailed {
		t.Fatalf("outcome = %q, want failed", j.LastOutcome)
	}
	if !strings.Contains(j.LastError, context.DeadlineExceeded.Error()) {
		t.Fatalf("last error = %q, want deadline exceeded", j.LastError)
	}
}

func TestStartExposesNextRun(t *testing.T) {
	r := runnerFunc(func(context.Context, agent.JobKind) (agent.Outcome, error) {
		return agent.OutcomeSkipped, nil
	})
	s, err := New(r, nil, Options{Location: time.UTC})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.Stop(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("stop: %v", err)
		}
	}()

	for _, j := range s.Jobs() {
		if j.NextRunAt == nil {
			t.Fatalf("%s has no next run after start", j.Kind)
		}
		if !j.NextRunAt.After(time.Now().Add(-time.Minute)) {
			t.Fatalf("%s next run %s is in the past", j.Kind, j.NextRunAt)
		}
	}
}
