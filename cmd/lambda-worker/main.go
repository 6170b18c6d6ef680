package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"wasteops-backend/internal/bootstrap"
	"wasteops-backend/internal/shared/config"
	"wasteops-backend/internal/shared/metrics"
	"wasteops-backend/internal/shared/telemetry"
	"wasteops-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	telemetry.Configure(os.Stdout, cfg.LogLevel)
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return process(ctx, app.DocumentsService, event), nil
}

// process reports only retryable messages as batch failures; everything
// else is settled and removed by Lambda.
func process(ctx context.Context, v workerproc.Verifier, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		res, err := workerproc.HandleMessage(ctx, v, record.Body)
		fields := map[string]any{"sqs_message_id": record.MessageId, "event": res.Message.Event, "job_id": res.Message.JobID}
		switch {
		case workerproc.Retryable(err):
			fields["error"] = err.Error()
			telemetry.Error("lambda_worker.verify_failed", fields)
			metrics.IncNotification("failed")
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		case err != nil:
			fields["error"] = err.Error()
			telemetry.Error("lambda_worker.unrecoverable", fields)
			metrics.IncNotification(workerproc.OutcomeUnrecoverable)
		default:
			fields["outcome"] = res.Outcome
			telemetry.Info("lambda_worker.settled", fields)
			metrics.IncNotification(res.Outcome)
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
