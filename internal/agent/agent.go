// Package agent holds the job bodies: per firing it assembles context
// from the store, asks the oracle, interprets the answer, consults the
// gate, and hands approved messages to the notifier. Every firing is
// fault-isolated: any failure maps to an outcome and an error for the
// scheduler to log, never a crash, and nothing here retries.
package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/heraldhq/herald/internal/gate"
	"github.com/heraldhq/herald/internal/state"
)

// JobKind names the independently scheduled workflows.
type JobKind string

const (
	JobMorningDigest JobKind = "morning_digest"
	JobUrgencyCheck  JobKind = "urgency_check"
	JobFocusNudge    JobKind = "focus_nudge"
	JobWeeklyReview  JobKind = "weekly_review"
)

// Kinds lists every job in registration order.
func Kinds() []JobKind {
	return []JobKind{JobMorningDigest, JobUrgencyCheck, JobFocusNudge, JobWeeklyReview}
}

func (k JobKind) Valid() bool {
	switch k {
	case JobMorningDigest, JobUrgencyCheck, JobFocusNudge, JobWeeklyReview:
		return true
	}
	return false
}

// Outcome is the terminal state of one firing.
type Outcome string

const (
	// OutcomeDelivered: a notification went out and was recorded.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeSuppressed: the oracle declined or the gate was within its
	// cool-down window.
	OutcomeSuppressed Outcome = "suppressed"
	// OutcomeSkipped: the trigger condition did not hold; no oracle call
	// was made.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed: store, oracle, parse or delivery failure.
	OutcomeFailed Outcome = "failed"
)

// Oracle is the model boundary as consumed here.
type Oracle interface {
	Ask(ctx context.Context, systemPrompt, userMessage string, maxTokens int) (string, error)
}

// Notifier delivers an approved message and records it.
type Notifier interface {
	Deliver(ctx context.Context, kind state.NotificationKind, subject, htmlBody string) error
}

// Config tunes the pipeline. Zero values fall back to the defaults the
// system ships with, so an empty Config is fully functional.
type Config struct {
	// HorizonDays bounds how far ahead the urgency check looks.
	HorizonDays int
	// TaskLimit caps how many task lines a context digest renders.
	TaskLimit int
	// MaxTokens caps the oracle reply length per call.
	MaxTokens int
	// Gate carries the per-kind cool-down windows.
	Gate gate.Policy
	// Location anchors "today" for urgency and weekday computations.
	Location *time.Location
}

func (c Config) withDefaults() Config {
	if c.HorizonDays <= 0 {
		c.HorizonDays = 3
	}
	if c.TaskLimit <= 0 {
		c.TaskLimit = 8
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 400
	}
	if c.Gate.CoolDowns == nil {
		c.Gate = gate.NewDefault()
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

type Agent struct {
	repo     *state.Repository
	oracle   Oracle
	notifier Notifier
	cfg      Config
	logger   *log.Logger
	now      func() time.Time
}

func New(repo *state.Repository, oracle Oracle, notifier Notifier, cfg Config) *Agent {
	return &Agent{
		repo:     repo,
		oracle:   oracle,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   log.New(log.Writer(), "[AGENT] ", log.LstdFlags),
		now:      time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (a *Agent) SetClock(now func() time.Time) { a.now = now }

// Run executes one firing of the given kind.
func (a *Agent) Run(ctx context.Context, kind JobKind) (Outcome, error) {
	switch kind {
	case JobMorningDigest:
		return a.morningDigest(ctx)
	case JobUrgencyCheck:
		return a.urgencyCheck(ctx)
	case JobFocusNudge:
		return a.focusNudge(ctx)
	case JobWeeklyReview:
		return a.weeklyReview(ctx)
	}
	return OutcomeFailed, fmt.Errorf("unknown job kind %q", kind)
}

func (a *Agent) today() time.Time {
	return a.now().In(a.cfg.Location)
}

func dateLine(today time.Time) string {
	return fmt.Sprintf("Today is %s, %s.", today.Weekday(), today.Format("2006-01-02"))
}
