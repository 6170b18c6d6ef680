package workerproc

import (
	"context"
	"errors"
	"testing"

	"wasteops-backend/internal/documents"
	"wasteops-backend/internal/queue"
)

type fakeVerifier struct {
	result documents.Verification
	err    error
}

func (f fakeVerifier) Verify(ctx context.Context, externalID string) (documents.Verification, error) {
	_ = ctx
	_ = externalID
	return f.result, f.err
}

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	body, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(body)
}

func TestParseMessageErrors(t *testing.T) {
	if _, _, err := ParseMessage("  "); !errors.As(err, new(ErrEmptyBody)) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
	if _, meta, err := ParseMessage("{bad"); !errors.As(err, new(ErrDecode)) || meta.BodySHA == "" {
		t.Fatalf("expected ErrDecode with meta, got %v %+v", err, meta)
	}
	if _, _, err := ParseMessage(`{"jobId":1}`); !errors.As(err, new(ErrMissingEvent)) {
		t.Fatalf("expected ErrMissingEvent, got %v", err)
	}
}

func TestHandleMessageAcknowledgesTransitions(t *testing.T) {
	body := encode(t, queue.Message{Event: queue.EventJobTransitioned, JobID: 3, Status: "scheduled"})
	res, err := HandleMessage(context.Background(), nil, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeAcknowledged {
		t.Fatalf("expected acknowledged, got %s", res.Outcome)
	}
}

func TestHandleMessageVerifiesCertificates(t *testing.T) {
	body := encode(t, queue.Message{Event: queue.EventDocumentIssued, JobID: 3, ExternalID: "abc"})

	res, err := HandleMessage(context.Background(), fakeVerifier{result: documents.Verification{Valid: true}}, body)
	if err != nil || res.Outcome != OutcomeVerified {
		t.Fatalf("expected verified, got %s %v", res.Outcome, err)
	}

	res, err = HandleMessage(context.Background(), fakeVerifier{result: documents.Verification{Valid: false}}, body)
	if err != nil || res.Outcome != OutcomeInvalid {
		t.Fatalf("expected invalid, got %s %v", res.Outcome, err)
	}
	if res.Verification == nil || res.Verification.Valid {
		t.Fatalf("expected verification details")
	}
}

func TestHandleMessageFailures(t *testing.T) {
	body := encode(t, queue.Message{Event: queue.EventDocumentIssued, JobID: 3, ExternalID: "abc"})

	_, err := HandleMessage(context.Background(), fakeVerifier{err: errors.New("timeout")}, body)
	if !Retryable(err) {
		t.Fatalf("expected retryable, got %v", err)
	}

	res, err := HandleMessage(context.Background(), fakeVerifier{err: documents.ErrNotFound}, body)
	if err == nil || Retryable(err) || res.Outcome != OutcomeUnrecoverable {
		t.Fatalf("expected unrecoverable, got %s %v", res.Outcome, err)
	}

	if _, err := HandleMessage(context.Background(), nil, body); !Retryable(err) {
		t.Fatalf("expected retryable without verifier, got %v", err)
	}
}
