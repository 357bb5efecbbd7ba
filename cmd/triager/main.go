package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/civicconnect/internal/adapters/nats"
	"github.com/samirrijal/civicconnect/internal/adapters/postgres"
	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/usecases"
	"github.com/samirrijal/civicconnect/internal/pkg/config"
	"github.com/samirrijal/civicconnect/internal/pkg/logging"
	"github.com/samirrijal/civicconnect/internal/workflows"
)

func main() {
	cfg, err := config.Load("civicconnect-triager")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("logging: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	// Photos and verification are not needed to notify or escalate.
	issues := usecases.NewIssueService(postgres.NewIssueRepo(db), nil, nil, pub, nil)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.TriageWorkflow)
	w.RegisterActivity(&workflows.TriageActivities{Issues: issues})

	// Every reported issue gets a triage workflow.
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "triager")
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	slaHigh := time.Duration(cfg.Triage.SLAHighHours) * time.Hour
	slaNormal := time.Duration(cfg.Triage.SLANormalHours) * time.Hour
	err = sub.SubscribeIssueEvents(ctx, domain.EventIssueReported, func(ctx context.Context, e *domain.IssueEvent) error {
		in := workflows.TriageInput{
			IssueID:   e.IssueID,
			Priority:  e.Priority,
			SLAHigh:   slaHigh,
			SLANormal: slaNormal,
		}
		run, err := c.ExecuteWorkflow(ctx, workflows.StartOptions(e.IssueID, cfg.Temporal.TaskQueue), workflows.TriageWorkflow, in)
		if err != nil {
			return err
		}
		slog.Info("triage started", "issue_id", e.IssueID, "workflow_id", run.GetID(), "priority", e.Priority)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("triager worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
