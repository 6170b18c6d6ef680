package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"wasteops-backend/internal/documents"
	"wasteops-backend/internal/queue"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	_ = ctx
	_ = params
	_ = optFns
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	_ = ctx
	_ = optFns
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeVerifier struct {
	result documents.Verification
	err    error
	calls  []string
}

func (f *fakeVerifier) Verify(ctx context.Context, externalID string) (documents.Verification, error) {
	_ = ctx
	f.calls = append(f.calls, externalID)
	return f.result, f.err
}

func certificateMessage(t *testing.T, id, receipt string) sqstypes.Message {
	t.Helper()
	body, err := queue.EncodeMessage(queue.Message{
		Event:      queue.EventDocumentIssued,
		JobID:      100,
		JobCode:    "J-100",
		Kind:       "data-destruction-certificate",
		ExternalID: "ext-1",
		RequestID:  "req-1",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String(receipt),
		Body:          aws.String(string(body)),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesVerifiedCertificate(t *testing.T) {
	client := &fakeSQS{}
	v := &fakeVerifier{result: documents.Verification{Valid: true}}

	handleMessage(context.Background(), client, "queue", v, certificateMessage(t, "m1", "r1"))

	if len(v.calls) != 1 || v.calls[0] != "ext-1" {
		t.Fatalf("expected verify of ext-1, got %v", v.calls)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesInvalidCertificate(t *testing.T) {
	client := &fakeSQS{}
	v := &fakeVerifier{result: documents.Verification{Valid: false, ChecksumMatches: false}}

	handleMessage(context.Background(), client, "queue", v, certificateMessage(t, "m2", "r2"))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerKeepsMessageOnTransientFailure(t *testing.T) {
	client := &fakeSQS{}
	v := &fakeVerifier{err: errors.New("store unavailable")}

	handleMessage(context.Background(), client, "queue", v, certificateMessage(t, "m3", "r3"))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesMissingCertificate(t *testing.T) {
	client := &fakeSQS{}
	v := &fakeVerifier{err: documents.ErrNotFound}

	handleMessage(context.Background(), client, "queue", v, certificateMessage(t, "m4", "r4"))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerAcknowledgesTransitionEvents(t *testing.T) {
	client := &fakeSQS{}
	v := &fakeVerifier{}
	body, _ := queue.EncodeMessage(queue.Message{Event: queue.EventJobTransitioned, JobID: 7, Status: "scheduled"})
	msg := sqstypes.Message{
		MessageId:     aws.String("m5"),
		ReceiptHandle: aws.String("r5"),
		Body:          aws.String(string(body)),
	}

	handleMessage(context.Background(), client, "queue", v, msg)

	if len(v.calls) != 0 {
		t.Fatalf("expected no verification, got %v", v.calls)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	msg := sqstypes.Message{
		MessageId:     aws.String("m6"),
		ReceiptHandle: aws.String("r6"),
		Body:          aws.String("{bad-json"),
	}

	handleMessage(context.Background(), client, "queue", &fakeVerifier{}, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestReceiveCount(t *testing.T) {
	msg := sqstypes.Message{Attributes: map[string]string{"ApproximateReceiveCount": "3"}}
	if got := receiveCount(msg); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := receiveCount(sqstypes.Message{}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
