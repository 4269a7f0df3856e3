// Package state defines the user-state entities kept in the key-value
// store and a typed repository over them. Tasks, goals, projects and
// notes are owned by external collaborators (UI, voice intents) and only
// read here; the notification and completion logs are the append-only
// records this process maintains.
package state

import (
	"encoding/json"
	"time"
)

// Logical store keys. Every key has a default established idempotently at
// startup so reads of a never-written key behave as the default, never as
// an error.
const (
	KeyTasks           = "tasks"
	KeyGoals           = "goals"
	KeyMemory          = "memory"
	KeyNotificationLog = "notification_log"
	KeyCompletionLog   = "completion_log"
	KeyProjects        = "projects"
	KeyNotes           = "notes"
)

// Log caps bound unattended growth; appends trim to the most recent N.
const (
	NotificationLogCap = 50
	CompletionLogCap   = 500
)

// Defaults returns the initial value for every known key.
func Defaults() map[string]json.RawMessage {
	return map[string]json.RawMessage{
		KeyTasks:           json.RawMessage(`[]`),
		KeyGoals:           json.RawMessage(`[]`),
		KeyMemory:          json.RawMessage(`""`),
		KeyNotificationLog: json.RawMessage(`[]`),
		KeyCompletionLog:   json.RawMessage(`[]`),
		KeyProjects:        json.RawMessage(`[]`),
		KeyNotes:           json.RawMessage(`""`),
	}
}

// KnownKey reports whether key is one of the managed store keys.
func KnownKey(key string) bool {
	_, ok := Defaults()[key]
	return ok
}

// Priority levels. Rank orders them for sorting: high first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

// NotificationKind is the explicit category tag on every log entry, set
// at write time. The gate matches on it; the human-readable subject never
// participates in classification.
type NotificationKind string

const (
	KindDigest NotificationKind = "digest"
	KindDue    NotificationKind = "due"
	KindFocus  NotificationKind = "focus"
	KindReview NotificationKind = "review"
)

func (k NotificationKind) Valid() bool {
	switch k {
	case KindDigest, KindDue, KindFocus, KindReview:
		return true
	}
	return false
}

const dueDateLayout = "2006-01-02"

// Task is created and edited externally; the core only reads it. done and
// dueDate drive urgency computations.
type Task struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Priority   Priority  `json:"priority"`
	Category   string    `json:"category,omitempty"`
	DueDate    *string   `json:"dueDate"`
	Done       bool      `json:"done"`
	Recurrence string    `json:"recurrence,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Due parses the task's due date at midnight in loc. ok=false when no due
// date is set or it does not parse.
func (t Task) Due(loc *time.Location) (time.Time, bool) {
	if t.DueDate == nil || *t.DueDate == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(dueDateLayout, *t.DueDate, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Goal tracks a savings or achievement target. Read-only from the core.
type Goal struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Achieved bool     `json:"achieved"`
	Target   *float64 `json:"target,omitempty"`
	Saved    *float64 `json:"saved,omitempty"`
}

// PercentFunded derives saved/target as a percentage. ok=false when
// either side is absent or the target is not positive.
func (g Goal) PercentFunded() (float64, bool) {
	if g.Target == nil || g.Saved == nil || *g.Target <= 0 {
		return 0, false
	}
	return *g.Saved / *g.Target * 100, true
}

// NotificationLogEntry records one delivered notification. Append-only,
// bounded to NotificationLogCap entries.
type NotificationLogEntry struct {
	Kind   NotificationKind `json:"kind"`
	Type   string           `json:"type"`
	SentAt time.Time        `json:"sentAt"`
	HTML   string           `json:"html,omitempty"`
}

// CompletionLogEntry records one finished task, appended by external
// collaborators. Bounded to CompletionLogCap entries.
type CompletionLogEntry struct {
	TaskTitle   string    `json:"taskTitle"`
	CompletedAt time.Time `json:"completedAt"`
}
