// Package scheduler owns the cron runner: one entry per job kind,
// registered at construction and firing for the process lifetime.
// Firings of different kinds never serialize against each other;
// overlapping firings of the same kind are skipped.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	rcron "github.com/robfig/cron/v3"

	"github.com/heraldhq/herald/internal/agent"
	"github.com/heraldhq/herald/internal/telemetry"
)

// Runner executes one firing of a job.
type Runner interface {
	Run(ctx context.Context, kind agent.JobKind) (agent.Outcome, error)
}

// Schedule is the per-kind cron entry. Spec is a standard 5-field cron
// expression and may carry a CRON_TZ= prefix to pin the job to a zone
// other than the scheduler default.
type Schedule struct {
	Spec    string
	Enabled bool
}

// DefaultSchedules returns the shipped cadence for every kind.
func DefaultSchedules() map[agent.JobKind]Schedule {
	return map[agent.JobKind]Schedule{
		agent.JobMorningDigest: {Spec: "0 7 * * *", Enabled: true},
		agent.JobUrgencyCheck:  {Spec: "0 8-22/2 * * *", Enabled: true},
		agent.JobFocusNudge:    {Spec: "30 9-18/2 * * *", Enabled: true},
		agent.JobWeeklyReview:  {Spec: "0 17 * * 0", Enabled: true},
	}
}

// Job states as exposed by Jobs.
const (
	StateIdle   = "idle"
	StateFiring = "firing"
)

// JobStatus is a point-in-time view of one registered job.
type JobStatus struct {
	Kind        agent.JobKind `json:"kind"`
	Spec        string        `json:"schedule"`
	Enabled     bool          `json:"enabled"`
	State       string        `json:"state"`
	LastFiredAt *time.Time    `json:"lastFiredAt,omitempty"`
	LastOutcome agent.Outcome `json:"lastOutcome,omitempty"`
	LastError   string        `json:"lastError,omitempty"`
	NextRunAt   *time.Time    `json:"nextRunAt,omitempty"`
}

type jobState struct {
	spec        string
	enabled     bool
	entryID     rcron.EntryID
	wrapped     rcron.Job
	state       string
	lastFiredAt time.Time
	lastOutcome agent.Outcome
	lastError   string
}

// Options tunes the scheduler. Zero values fall back to defaults.
type Options struct {
	// Location is the default zone for specs without a CRON_TZ= prefix.
	Location *time.Location
	// Timeout bounds a single firing.
	Timeout time.Duration
	// Schedules overrides per kind; kinds not present keep their default.
	Schedules map[agent.JobKind]Schedule
}

type Scheduler struct {
	runner  Runner
	tel     *telemetry.Telemetry
	cron    *rcron.Cron
	timeout time.Duration
	logger  *log.Logger

	mu   sync.Mutex
	jobs map[agent.JobKind]*jobState
}

// New builds the scheduler and registers every enabled kind. The cron
// runner does not tick until Start.
func New(runner Runner, tel *telemetry.Telemetry, opts Options) (*Scheduler, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	for kind := range opts.Schedules {
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown job kind %q in schedules", kind)
		}
	}

	logger := log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	s := &Scheduler{
		runner:  runner,
		tel:     tel,
		cron:    rcron.New(rcron.WithLocation(loc)),
		timeout: timeout,
		logger:  logger,
		jobs:    make(map[agent.JobKind]*jobState),
	}

	cronLog := rcron.PrintfLogger(logger)
	chain := rcron.NewChain(rcron.SkipIfStillRunning(cronLog), rcron.Recover(cronLog))
	defaults := DefaultSchedules()
	for _, kind := range agent.Kinds() {
		sched, ok := opts.Schedules[kind]
		if !ok {
			sched = defaults[kind]
		} else if strings.TrimSpace(sched.Spec) == "" {
			sched.Spec = defaults[kind].Spec
		}

		st := &jobState{
			spec:    sched.Spec,
			enabled: sched.Enabled,
			wrapped: chain.Then(rcron.FuncJob(func() { s.fire(kind) })),
			state:   StateIdle,
		}
		if sched.Enabled {
			id, err := s.cron.AddJob(sched.Spec, st.wrapped)
			if err != nil {
				return nil, fmt.Errorf("register %s (%q): %w", kind, sched.Spec, err)
			}
			st.entryID = id
		}
		s.jobs[kind] = st
	}
	return s, nil
}

// Start begins ticking the registered entries.
func (s *Scheduler) Start() {
	s.cron.Start()
	enabled := 0
	s.mu.Lock()
	for _, st := range s.jobs {
		if st.enabled {
			enabled++
		}
	}
	s.mu.Unlock()
	s.logger.Printf("started with %d scheduled jobs", enabled)
}

// Stop halts scheduling and waits for in-flight firings, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Printf("stopped")
		return nil
	case <-ctx.Done():
		s.logger.Printf("stop timeout waiting for running jobs")
		return ctx.Err()
	}
}

// RunNow fires one kind outside its schedule. The firing goes through
// the same wrapper chain as a scheduled one, so a manual trigger during
// a running firing of the same kind is skipped, not doubled. Disabled
// kinds can still be fired manually.
func (s *Scheduler) RunNow(kind agent.JobKind) error {
	s.mu.Lock()
	st, ok := s.jobs[kind]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job kind %q", kind)
	}
	go st.wrapped.Run()
	return nil
}

// Jobs reports every kind in registration order.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, kind := range agent.Kinds() {
		st, ok := s.jobs[kind]
		if !ok {
			continue
		}
		js := JobStatus{
			Kind:        kind,
			Spec:        st.spec,
			Enabled:     st.enabled,
			State:       st.state,
			LastOutcome: st.lastOutcome,
			LastError:   st.lastError,
		}
		if !st.lastFiredAt.IsZero() {
			fired := st.lastFiredAt
			js.LastFiredAt = &fired
		}
		if st.enabled {
			if next := s.cron.Entry(st.entryID).Next; !next.IsZero() {
				js.NextRunAt = &next
			}
		}
		out = append(out, js)
	}
	return out
}

// fire is the body of one firing. It runs inside the per-kind chain,
// so it never overlaps itself, and a panic is caught one level up.
func (s *Scheduler) fire(kind agent.JobKind) {
	runID := uuid.NewString()
	start := time.Now()
	s.begin(kind, start)
	s.logger.Printf("%s: firing run %s", kind, runID)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	outcome := agent.OutcomeFailed
	var err error
	defer func() {
		s.finish(kind, outcome, err)
		s.tel.RecordFiring(string(kind), string(outcome))
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			s.logger.Printf("%s: run %s %s after %s: %v", kind, runID, outcome, elapsed, err)
		} else {
			s.logger.Printf("%s: run %s %s after %s", kind, runID, outcome, elapsed)
		}
	}()
	outcome, err = s.runner.Run(ctx, kind)
}

func (s *Scheduler) begin(kind agent.JobKind, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.jobs[kind]; ok {
		st.state = StateFiring
		st.lastFiredAt = at
	}
}

func (s *Scheduler) finish(kind agent.JobKind, outcome agent.Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.jobs[kind]
	if !ok {
		return
	}
	st.state = StateIdle
	st.lastOutcome = outcome
	st.lastError = ""
	if err != nil {
		st.lastError = err.Error()
	}
}
