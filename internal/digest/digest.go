// Package digest renders the bounded textual summaries of user state
// handed to the oracle. Everything here is deterministic and pure: the
// caller supplies "today" anchored in the configured time zone.
package digest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/heraldhq/herald/internal/state"
)

// OpenTasks filters to not-done tasks, preserving input order.
func OpenTasks(tasks []state.Task) []state.Task {
	var out []state.Task
	for _, t := range tasks {
		if !t.Done {
			out = append(out, t)
		}
	}
	return out
}

// NonLowPriority filters to open tasks above low priority.
func NonLowPriority(tasks []state.Task) []state.Task {
	var out []state.Task
	for _, t := range OpenTasks(tasks) {
		if t.Priority != state.PriorityLow {
			out = append(out, t)
		}
	}
	return out
}

// DueWithin filters to open tasks whose due date falls on or before
// today+horizonDays. Overdue tasks qualify: they are the most urgent
// members of the horizon.
func DueWithin(tasks []state.Task, today time.Time, horizonDays int) []state.Task {
	var out []state.Task
	for _, t := range OpenTasks(tasks) {
		due, ok := t.Due(today.Location())
		if !ok {
			continue
		}
		if daysBetween(today, due) <= horizonDays {
			out = append(out, t)
		}
	}
	return out
}

// SortByPriority returns a copy ordered by priority rank (high first),
// stable within a rank.
func SortByPriority(tasks []state.Task) []state.Task {
	out := make([]state.Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() < out[j].Priority.Rank()
	})
	return out
}

// daysBetween computes the integer day difference to - from at day
// granularity, ignoring clock time and DST length anomalies.
func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// Urgency classifies a due date against today at day granularity.
func Urgency(due, today time.Time) string {
	switch n := daysBetween(today, due); {
	case n < 0:
		return fmt.Sprintf("OVERDUE by %dd", -n)
	case n == 0:
		return "DUE TODAY"
	default:
		return fmt.Sprintf("due in %dd", n)
	}
}

// RenderTasks produces one line per task, truncated to limit items with a
// trailing count of the remainder. Input order is preserved; callers sort
// beforehand when a job wants priority order.
func RenderTasks(tasks []state.Task, today time.Time, limit int) string {
	if len(tasks) == 0 {
		return "(no tasks)"
	}
	var b strings.Builder
	n := len(tasks)
	if limit > 0 && n > limit {
		n = limit
	}
	for _, t := range tasks[:n] {
		b.WriteString("- ")
		b.WriteString(t.Title)
		b.WriteString(fmt.Sprintf(" [%s]", t.Priority))
		if t.Category != "" {
			b.WriteString(fmt.Sprintf(" (%s)", t.Category))
		}
		if due, ok := t.Due(today.Location()); ok {
			b.WriteString(" ")
			b.WriteString(Urgency(due, today))
		}
		b.WriteString("\n")
	}
	if rest := len(tasks) - n; rest > 0 {
		b.WriteString(fmt.Sprintf("(+%d more)\n", rest))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderGoals produces one line per goal with the derived percent-funded
// when target and saved are both present.
func RenderGoals(goals []state.Goal) string {
	if len(goals) == 0 {
		return "(no goals)"
	}
	var b strings.Builder
	for _, g := range goals {
		b.WriteString("- ")
		b.WriteString(g.Title)
		if g.Achieved {
			b.WriteString(": achieved")
		} else if pct, ok := g.PercentFunded(); ok {
			b.WriteString(fmt.Sprintf(": %.0f%% funded (%.0f/%.0f)", pct, *g.Saved, *g.Target))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderCompletions summarises completion history since the cutoff as
// per-title counts with the most recent date, most frequent first,
// truncated to limit lines.
func RenderCompletions(entries []state.CompletionLogEntry, since time.Time, limit int) string {
	type agg struct {
		title string
		count int
		last  time.Time
	}
	byTitle := map[string]*agg{}
	var order []string
	for _, e := range entries {
		if e.CompletedAt.Before(since) {
			continue
		}
		a, ok := byTitle[e.TaskTitle]
		if !ok {
			a = &agg{title: e.TaskTitle}
			byTitle[e.TaskTitle] = a
			order = append(order, e.TaskTitle)
		}
		a.count++
		if e.CompletedAt.After(a.last) {
			a.last = e.CompletedAt
		}
	}
	if len(order) == 0 {
		return "(no completions recorded)"
	}
	aggs := make([]*agg, 0, len(order))
	for _, title := range order {
		aggs = append(aggs, byTitle[title])
	}
	sort.SliceStable(aggs, func(i, j int) bool { return aggs[i].count > aggs[j].count })
	if limit > 0 && len(aggs) > limit {
		aggs = aggs[:limit]
	}
	var b strings.Builder
	for _, a := range aggs {
		plural := "times"
		if a.count == 1 {
			plural = "time"
		}
		b.WriteString(fmt.Sprintf("- %s: %d %s, last on %s\n", a.title, a.count, plural, a.last.Format("2006-01-02")))
	}
	return strings.TrimRight(b.String(), "\n")
}
