package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/heraldhq/herald/internal/decision"
	"github.com/heraldhq/herald/internal/digest"
	"github.com/heraldhq/herald/internal/gate"
	"github.com/heraldhq/herald/internal/state"
)

// morningDigest composes an overview of open tasks and goals. No
// judgment and no gate: it always sends when there is data, and is a
// no-op without any.
func (a *Agent) morningDigest(ctx context.Context) (Outcome, error) {
	tasks, err := a.repo.Tasks(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("read tasks: %w", err)
	}
	goals, err := a.repo.Goals(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("read goals: %w", err)
	}
	open := digest.OpenTasks(tasks)
	if len(open) == 0 && len(goals) == 0 {
		a.logger.Printf("%s: nothing to report", JobMorningDigest)
		return OutcomeSkipped, nil
	}

	today := a.today()
	var b strings.Builder
	b.WriteString(dateLine(today))
	b.WriteString("\n\nOpen tasks:\n")
	b.WriteString(digest.RenderTasks(digest.SortByPriority(open), today, a.cfg.TaskLimit))
	b.WriteString("\n\nGoals:\n")
	b.WriteString(digest.RenderGoals(goals))

	reply, err := a.oracle.Ask(ctx, promptMorningDigest, b.String(), a.cfg.MaxTokens)
	if err != nil {
		return OutcomeFailed, err
	}
	if err := a.notifier.Deliver(ctx, state.KindDigest, subjectMorningDigest, strings.TrimSpace(reply)); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeDelivered, nil
}

// urgencyCheck asks for a go/no-go on tasks inside the due horizon. The
// judgment and the gate must both clear before delivery.
func (a *Agent) urgencyCheck(ctx context.Context) (Outcome, error) {
	tasks, err := a.repo.Tasks(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("read tasks: %w", err)
	}
	today := a.today()
	dueSoon := digest.DueWithin(tasks, today, a.cfg.HorizonDays)
	if len(dueSoon) == 0 {
		return OutcomeSkipped, nil
	}

	msg := fmt.Sprintf("%s\n\nTasks due within %dd:\n%s",
		dateLine(today), a.cfg.HorizonDays,
		digest.RenderTasks(digest.SortByPriority(dueSoon), today, a.cfg.TaskLimit))

	return a.judge(ctx, judgment{
		job:            JobUrgencyCheck,
		kind:           state.KindDue,
		systemPrompt:   promptUrgencyCheck,
		userMessage:    msg,
		defaultSubject: subjectDueAlert,
	})
}

// focusNudge runs on weekdays when non-low-priority tasks are open.
func (a *Agent) focusNudge(ctx context.Context) (Outcome, error) {
	today := a.today()
	if wd := today.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return OutcomeSkipped, nil
	}
	tasks, err := a.repo.Tasks(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("read tasks: %w", err)
	}
	candidates := digest.NonLowPriority(tasks)
	if len(candidates) == 0 {
		return OutcomeSkipped, nil
	}

	msg := fmt.Sprintf("%s\n\nPriority tasks:\n%s",
		dateLine(today),
		digest.RenderTasks(digest.SortByPriority(candidates), today, a.cfg.TaskLimit))

	return a.judge(ctx, judgment{
		job:            JobFocusNudge,
		kind:           state.KindFocus,
		systemPrompt:   promptFocusNudge,
		userMessage:    msg,
		defaultSubject: subjectFocusNudge,
	})
}

// weeklyReview always composes: suggestions from the trailing six months
// of completion history plus the current open tasks.
func (a *Agent) weeklyReview(ctx context.Context) (Outcome, error) {
	completions, err := a.repo.CompletionLog(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("read completion log: %w", err)
	}
	tasks, err := a.repo.Tasks(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("read tasks: %w", err)
	}

	today := a.today()
	var b strings.Builder
	b.WriteString(dateLine(today))
	b.WriteString("\n\nCompleted over the last 6 months:\n")
	b.WriteString(digest.RenderCompletions(completions, today.AddDate(0, -6, 0), 12))
	b.WriteString("\n\nCurrently open:\n")
	b.WriteString(digest.RenderTasks(digest.OpenTasks(tasks), today, a.cfg.TaskLimit))

	reply, err := a.oracle.Ask(ctx, promptWeeklyReview, b.String(), a.cfg.MaxTokens)
	if err != nil {
		return OutcomeFailed, err
	}
	if err := a.notifier.Deliver(ctx, state.KindReview, subjectWeeklyReview, strings.TrimSpace(reply)); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeDelivered, nil
}

// judgment bundles the parameters of one judged firing.
type judgment struct {
	job            JobKind
	kind           state.NotificationKind
	systemPrompt   string
	userMessage    string
	defaultSubject string
}

// judge runs the shared tail of the judged jobs: ask, parse, validate,
// check the judgment, check the gate, deliver.
func (a *Agent) judge(ctx context.Context, j judgment) (Outcome, error) {
	reply, err := a.oracle.Ask(ctx, j.systemPrompt, j.userMessage, a.cfg.MaxTokens)
	if err != nil {
		return OutcomeFailed, err
	}
	d, err := decision.Parse(reply)
	if err != nil {
		return OutcomeFailed, err
	}
	if err := d.Validate(true); err != nil {
		return OutcomeFailed, err
	}
	if !d.Approved() {
		a.logger.Printf("%s: oracle declined", j.job)
		return OutcomeSuppressed, nil
	}

	log, err := a.repo.NotificationLog(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("read notification log: %w", err)
	}
	coolDown := a.cfg.Gate.CoolDown(j.kind)
	if gate.ShouldSuppress(log, j.kind, coolDown, a.now()) {
		a.logger.Printf("%s: within %s cool-down, suppressed", j.job, coolDown)
		return OutcomeSuppressed, nil
	}

	subject := strings.TrimSpace(d.Subject)
	if subject == "" {
		subject = j.defaultSubject
	}
	if err := a.notifier.Deliver(ctx, j.kind, subject, strings.TrimSpace(d.Message)); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeDelivered, nil
}
