package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"wasteops-backend/internal/bootstrap"
	"wasteops-backend/internal/queue"
	"wasteops-backend/internal/shared/config"
	"wasteops-backend/internal/shared/metrics"
	"wasteops-backend/internal/shared/telemetry"
	"wasteops-backend/internal/workerproc"
)

const (
	defaultRegion             = "us-east-1"
	defaultVisibilitySeconds  = 300
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

// The worker consumes the notifications published after commits and
// re-verifies every issued certificate against its stored bytes.
func main() {
	cfg := config.Load()
	telemetry.Configure(os.Stdout, cfg.LogLevel)

	queueURL := strings.TrimSpace(cfg.SQSQueueURL)
	if queueURL == "" {
		log.Fatal("SQS_QUEUE_URL is required")
	}
	region := cfg.AWSRegion
	if region == "" {
		region = defaultRegion
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := envInt("WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	sem := make(chan struct{}, max(1, concurrency))
	var wg sync.WaitGroup

	log.Printf("worker started queue=%s concurrency=%d visibility=%ds", queueURL, concurrency, visibilitySeconds)

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, sqsClient, queueURL, app.DocumentsService, m)
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight messages", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight messages")
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// handleMessage deletes the message once it is settled. Messages that fail
// for transient reasons stay on the queue for redelivery.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, v workerproc.Verifier, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	res, err := workerproc.HandleMessage(ctx, v, body)
	if err != nil {
		fields := baseFields(msg, res.Message)
		fields["error"] = err.Error()
		switch e := err.(type) {
		case workerproc.ErrEmptyBody:
			fields["body_len"] = 0
			telemetry.Error("worker.notification.empty_body", fields)
		case workerproc.ErrDecode:
			fields["body_len"] = e.Meta.BodyLen
			fields["body_sha256"] = e.Meta.BodySHA
			telemetry.Error("worker.notification.decode_failed", fields)
		case workerproc.ErrMissingEvent:
			fields["body_sha256"] = e.Meta.BodySHA
			telemetry.Error("worker.notification.missing_event", fields)
		case workerproc.ErrProcess:
			telemetry.Error("worker.certificate.verify_failed", fields)
			metrics.IncNotification("failed")
			return
		default:
			telemetry.Error("worker.certificate.missing", fields)
		}
		settle(ctx, client, queueURL, msg, res.Message, workerproc.OutcomeUnrecoverable)
		return
	}

	fields := baseFields(msg, res.Message)
	fields["outcome"] = res.Outcome
	if res.Verification != nil && !res.Verification.Valid {
		fields["checksum_matches"] = res.Verification.ChecksumMatches
		fields["reference_found"] = res.Verification.ReferenceFound
		fields["job_code_found"] = res.Verification.JobCodeFound
		telemetry.Error("worker.certificate.invalid", fields)
	} else {
		telemetry.Info("worker.notification.settled", fields)
	}
	settle(ctx, client, queueURL, msg, res.Message, res.Outcome)
}

func settle(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, decoded queue.Message, outcome string) {
	if deleteMessage(ctx, client, queueURL, msg, decoded) {
		metrics.IncNotification(outcome)
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, decoded queue.Message) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, decoded)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.notification.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, decoded)
		fields["error"] = err.Error()
		telemetry.Error("worker.notification.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, decoded queue.Message) map[string]any {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if decoded.Event != "" {
		fields["event"] = decoded.Event
	}
	if decoded.JobID != 0 {
		fields["job_id"] = decoded.JobID
	}
	if decoded.ExternalID != "" {
		fields["external_id"] = decoded.ExternalID
	}
	if strings.TrimSpace(decoded.RequestID) != "" {
		fields["request_id"] = decoded.RequestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
