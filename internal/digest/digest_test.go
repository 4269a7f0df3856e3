package digest

import (
	"strings"
	"testing"
	"time"

	"github.com/heraldhq/herald/internal/state"
)

func strptr(s string) *string { return &s }

func TestUrgencyClassification(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	today := time.Date(2025, 3, 10, 14, 30, 0, 0, loc)

	cases := []struct {
		due  string
		want string
	}{
		{"2025-03-10", "DUE TODAY"},
		{"2025-03-11", "due in 1d"},
		{"2025-03-09", "OVERDUE by 1d"},
		{"2025-03-17", "due in 7d"},
		{"2025-03-01", "OVERDUE by 9d"},
	}
	for _, c := range cases {
		due, ok := (state.Task{DueDate: strptr(c.due)}).Due(loc)
		if !ok {
			t.Fatalf("due %s did not parse", c.due)
		}
		if got := Urgency(due, today); got != c.want {
			t.Fatalf("due %s: expected %q got %q", c.due, c.want, got)
		}
	}
}

func TestUrgencyAcrossDSTBoundary(t *testing.T) {
	// US spring-forward on 2025-03-09 makes that day 23 hours long; the
	// classification works at day granularity regardless.
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	today := time.Date(2025, 3, 8, 9, 0, 0, 0, loc)
	due, _ := (state.Task{DueDate: strptr("2025-03-10")}).Due(loc)
	if got := Urgency(due, today); got != "due in 2d" {
		t.Fatalf("expected due in 2d, got %q", got)
	}
}

func TestOpenAndPriorityFilters(t *testing.T) {
	tasks := []state.Task{
		{Title: "done", Priority: state.PriorityHigh, Done: true},
		{Title: "low", Priority: state.PriorityLow},
		{Title: "med", Priority: state.PriorityMedium},
		{Title: "high", Priority: state.PriorityHigh},
	}
	open := OpenTasks(tasks)
	if len(open) != 3 {
		t.Fatalf("expected 3 open tasks, got %d", len(open))
	}
	nonLow := NonLowPriority(tasks)
	if len(nonLow) != 2 {
		t.Fatalf("expected 2 non-low tasks, got %d", len(nonLow))
	}
	sorted := SortByPriority(nonLow)
	if sorted[0].Title != "high" || sorted[1].Title != "med" {
		t.Fatalf("unexpected priority order: %s, %s", sorted[0].Title, sorted[1].Title)
	}
}

func TestDueWithinIncludesOverdue(t *testing.T) {
	loc := time.UTC
	today := time.Date(2025, 3, 10, 8, 0, 0, 0, loc)
	tasks := []state.Task{
		{Title: "overdue", DueDate: strptr("2025-03-01")},
		{Title: "today", DueDate: strptr("2025-03-10")},
		{Title: "soon", DueDate: strptr("2025-03-12")},
		{Title: "far", DueDate: strptr("2025-04-01")},
		{Title: "no due"},
		{Title: "done", DueDate: strptr("2025-03-10"), Done: true},
	}
	got := DueWithin(tasks, today, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 tasks within horizon, got %d", len(got))
	}
	if got[0].Title != "overdue" || got[1].Title != "today" || got[2].Title != "soon" {
		t.Fatalf("unexpected selection: %#v", got)
	}
}

func TestRenderTasksTruncates(t *testing.T) {
	today := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	var tasks []state.Task
	for _, title := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		tasks = append(tasks, state.Task{Title: title, Priority: state.PriorityMedium})
	}
	out := RenderTasks(tasks, today, 5)
	if strings.Count(out, "\n") != 5 {
		t.Fatalf("expected 5 item lines plus tail, got:\n%s", out)
	}
	if !strings.Contains(out, "(+2 more)") {
		t.Fatalf("expected truncation tail, got:\n%s", out)
	}
}

func TestRenderTasksLineFormat(t *testing.T) {
	today := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	tasks := []state.Task{{
		Title:    "Pay rent",
		Priority: state.PriorityHigh,
		Category: "finance",
		DueDate:  strptr("2025-03-10"),
	}}
	out := RenderTasks(tasks, today, 8)
	want := "- Pay rent [high] (finance) DUE TODAY"
	if out != want {
		t.Fatalf("expected %q got %q", want, out)
	}
	if got := RenderTasks(nil, today, 8); got != "(no tasks)" {
		t.Fatalf("expected empty placeholder, got %q", got)
	}
}

func TestRenderGoals(t *testing.T) {
	target := 2000.0
	saved := 500.0
	goals := []state.Goal{
		{Title: "Emergency fund", Target: &target, Saved: &saved},
		{Title: "Run a 10k", Achieved: true},
		{Title: "Vague dream"},
	}
	out := RenderGoals(goals)
	if !strings.Contains(out, "- Emergency fund: 25% funded (500/2000)") {
		t.Fatalf("missing funded line:\n%s", out)
	}
	if !strings.Contains(out, "- Run a 10k: achieved") {
		t.Fatalf("missing achieved line:\n%s", out)
	}
	if !strings.Contains(out, "- Vague dream") {
		t.Fatalf("missing bare goal line:\n%s", out)
	}
}

func TestRenderCompletions(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []state.CompletionLogEntry{
		{TaskTitle: "Water plants", CompletedAt: base},
		{TaskTitle: "Water plants", CompletedAt: base.AddDate(0, 0, 7)},
		{TaskTitle: "Pay rent", CompletedAt: base.AddDate(0, 0, 2)},
		{TaskTitle: "Ancient chore", CompletedAt: base.AddDate(-1, 0, 0)},
	}
	out := RenderCompletions(entries, base.AddDate(0, -6, 0), 10)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got:\n%s", out)
	}
	if lines[0] != "- Water plants: 2 times, last on 2025-03-08" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if lines[1] != "- Pay rent: 1 time, last on 2025-03-03" {
		t.Fatalf("unexpected second line %q", lines[1])
	}
	if got := RenderCompletions(nil, base, 10); got != "(no completions recorded)" {
		t.Fatalf("expected placeholder, got %q", got)
	}
}
