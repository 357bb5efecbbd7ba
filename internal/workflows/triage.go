package workflows

import (
	"strconv"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/civicconnect/internal/core/domain"
)

// Activity names registered by TriageActivities.
const (
	ActivityNotifyDepartment = "NotifyDepartment"
	ActivityEscalateIssue    = "EscalateIssue"
)

// Default SLAs before a Pending issue is escalated.
const (
	DefaultSLAHigh   = 24 * time.Hour
	DefaultSLANormal = 72 * time.Hour
)

// TriageInput is the input for the triage workflow.
type TriageInput struct {
	IssueID   int64
	Priority  string
	SLAHigh   time.Duration
	SLANormal time.Duration
}

// SLA returns how long the issue may stay Pending.
func (in TriageInput) SLA() time.Duration {
	high, normal := in.SLAHigh, in.SLANormal
	if high <= 0 {
		high = DefaultSLAHigh
	}
	if normal <= 0 {
		normal = DefaultSLANormal
	}
	if in.Priority == domain.PriorityHigh {
		return high
	}
	return normal
}

// TriageResult reports what the workflow did.
type TriageResult struct {
	Escalated bool
}

// WorkflowID is the triage workflow id for an issue. One workflow runs per issue.
func WorkflowID(issueID int64) string {
	return "triage-" + strconv.FormatInt(issueID, 10)
}

// StartOptions returns the options used to start triage for an issue.
func StartOptions(issueID int64, taskQueue string) client.StartWorkflowOptions {
	return client.StartWorkflowOptions{
		ID:        WorkflowID(issueID),
		TaskQueue: taskQueue,
	}
}

// TriageWorkflow notifies the assigned department, waits out the SLA and
// escalates the issue if nobody has picked it up.
func TriageWorkflow(ctx workflow.Context, input TriageInput) (TriageResult, error) {
	logger := workflow.GetLogger(ctx)
	sla := input.SLA()
	logger.Info("Starting triage workflow", "issueID", input.IssueID, "priority", input.Priority, "sla", sla)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	// Step 1: tell the department. A failed notification does not stop the SLA clock.
	if err := workflow.ExecuteActivity(ctx, ActivityNotifyDepartment, input.IssueID).Get(ctx, nil); err != nil {
		logger.Warn("department notification failed", "issueID", input.IssueID, "error", err)
	}

	// Step 2: wait
	if err := workflow.Sleep(ctx, sla); err != nil {
		return TriageResult{}, err
	}

	// Step 3: escalate if still Pending
	var escalated bool
	if err := workflow.ExecuteActivity(ctx, ActivityEscalateIssue, input.IssueID).Get(ctx, &escalated); err != nil {
		return TriageResult{}, err
	}

	logger.Info("Triage finished", "issueID", input.IssueID, "escalated", escalated)
	return TriageResult{Escalated: escalated}, nil
}
