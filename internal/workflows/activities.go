package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/civicconnect/internal/core/domain"
)

// IssueTriager is the part of the issue service the triage activities use.
type IssueTriager interface {
	NotifyAssigned(ctx context.Context, id int64) error
	Escalate(ctx context.Context, id int64) (bool, error)
}

// TriageActivities holds the activity implementations for the triage workflow.
type TriageActivities struct {
	Issues IssueTriager
}

// NotifyDepartment publishes issue.assigned for the issue's department.
func (a *TriageActivities) NotifyDepartment(ctx context.Context, issueID int64) error {
	if err := a.Issues.NotifyAssigned(ctx, issueID); err != nil {
		return wrapActivityErr(fmt.Sprintf("notify issue %d", issueID), err)
	}
	return nil
}

// EscalateIssue marks the issue escalated when it is still Pending. A
// withdrawn issue is not escalated.
func (a *TriageActivities) EscalateIssue(ctx context.Context, issueID int64) (bool, error) {
	escalated, err := a.Issues.Escalate(ctx, issueID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapActivityErr(fmt.Sprintf("escalate issue %d", issueID), err)
	}
	if escalated {
		activity.GetLogger(ctx).Info("issue escalated", "issueID", issueID)
	}
	return escalated, nil
}

// wrapActivityErr makes a missing issue non-retryable. It was withdrawn.
func wrapActivityErr(msg string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return temporal.NewNonRetryableApplicationError(msg, "IssueNotFound", err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
