package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heraldhq/herald/internal/store"
)

// Repository layers typed reads, appends and replacements over the raw
// store. Read-then-write sequences (the log appends) are best-effort, not
// atomic: the store serializes individual calls only, and the coarse job
// cadence is the accepted mitigation for interleaved appends.
type Repository struct {
	s store.Store
}

func NewRepository(s store.Store) *Repository {
	return &Repository{s: s}
}

// Init seeds the default value for every known key without overwriting
// existing data. Safe to run on every startup.
func (r *Repository) Init(ctx context.Context) error {
	for key, def := range Defaults() {
		if err := r.s.SetDefault(ctx, key, def); err != nil {
			return fmt.Errorf("init %s: %w", key, err)
		}
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error { return r.s.Ping(ctx) }

// getJSON decodes key into out, falling back to def when the key is
// absent or blank so callers always observe the documented default.
func (r *Repository) getJSON(ctx context.Context, key string, def string, out interface{}) error {
	raw, ok, err := r.s.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok || len(raw) == 0 {
		raw = json.RawMessage(def)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *Repository) Tasks(ctx context.Context) ([]Task, error) {
	var tasks []Task
	if err := r.getJSON(ctx, KeyTasks, `[]`, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *Repository) Goals(ctx context.Context) ([]Goal, error) {
	var goals []Goal
	if err := r.getJSON(ctx, KeyGoals, `[]`, &goals); err != nil {
		return nil, err
	}
	return goals, nil
}

// Memory returns the standing free-form notes about the user, prepended
// to oracle system prompts.
func (r *Repository) Memory(ctx context.Context) (string, error) {
	var mem string
	if err := r.getJSON(ctx, KeyMemory, `""`, &mem); err != nil {
		return "", err
	}
	return mem, nil
}

func (r *Repository) NotificationLog(ctx context.Context) ([]NotificationLogEntry, error) {
	var log []NotificationLogEntry
	if err := r.getJSON(ctx, KeyNotificationLog, `[]`, &log); err != nil {
		return nil, err
	}
	return log, nil
}

func (r *Repository) CompletionLog(ctx context.Context) ([]CompletionLogEntry, error) {
	var log []CompletionLogEntry
	if err := r.getJSON(ctx, KeyCompletionLog, `[]`, &log); err != nil {
		return nil, err
	}
	return log, nil
}

func (r *Repository) setJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.s.Set(ctx, key, raw)
}

// AppendNotification appends one entry and trims the log to the most
// recent NotificationLogCap entries.
func (r *Repository) AppendNotification(ctx context.Context, e NotificationLogEntry) error {
	log, err := r.NotificationLog(ctx)
	if err != nil {
		return err
	}
	log = append(log, e)
	if len(log) > NotificationLogCap {
		log = log[len(log)-NotificationLogCap:]
	}
	return r.setJSON(ctx, KeyNotificationLog, log)
}

// AppendCompletion appends one entry and trims to CompletionLogCap.
func (r *Repository) AppendCompletion(ctx context.Context, e CompletionLogEntry) error {
	log, err := r.CompletionLog(ctx)
	if err != nil {
		return err
	}
	log = append(log, e)
	if len(log) > CompletionLogCap {
		log = log[len(log)-CompletionLogCap:]
	}
	return r.setJSON(ctx, KeyCompletionLog, log)
}

// ReplaceTasks overwrites the whole task list (there is no partial
// update). Entries are normalized: a missing id gets a generated UUID, a
// missing createdAt gets now, a missing priority defaults to medium. An
// invalid priority value rejects the whole replacement.
func (r *Repository) ReplaceTasks(ctx context.Context, tasks []Task, now time.Time) error {
	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = uuid.NewString()
		}
		if tasks[i].CreatedAt.IsZero() {
			tasks[i].CreatedAt = now
		}
		if tasks[i].Priority == "" {
			tasks[i].Priority = PriorityMedium
		}
		if !tasks[i].Priority.Valid() {
			return fmt.Errorf("task %q: invalid priority %q", tasks[i].Title, tasks[i].Priority)
		}
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return r.setJSON(ctx, KeyTasks, tasks)
}

// ReplaceGoals overwrites the whole goal list, filling missing ids.
func (r *Repository) ReplaceGoals(ctx context.Context, goals []Goal) error {
	for i := range goals {
		if goals[i].ID == "" {
			goals[i].ID = uuid.NewString()
		}
	}
	if goals == nil {
		goals = []Goal{}
	}
	return r.setJSON(ctx, KeyGoals, goals)
}

// RawGet exposes a known key's stored document for the state API. The
// default is returned when the key was never written.
func (r *Repository) RawGet(ctx context.Context, key string) (json.RawMessage, error) {
	def, known := Defaults()[key]
	if !known {
		return nil, fmt.Errorf("unknown key %q", key)
	}
	raw, ok, err := r.s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return def, nil
	}
	return raw, nil
}

// RawSet overwrites a known key with an arbitrary JSON document. Tasks
// and goals have dedicated replacement paths with validation; this is the
// passthrough for the remaining keys.
func (r *Repository) RawSet(ctx context.Context, key string, value json.RawMessage) error {
	if !KnownKey(key) {
		return fmt.Errorf("unknown key %q", key)
	}
	if !json.Valid(value) {
		return fmt.Errorf("key %s: body is not valid JSON", key)
	}
	return r.s.Set(ctx, key, value)
}
