// Package workerproc settles the notifications published after job commits.
// It is shared by the long-polling worker and the Lambda consumer.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"wasteops-backend/internal/documents"
	"wasteops-backend/internal/queue"
)

// Outcomes reported for settled messages.
const (
	OutcomeAcknowledged  = "acknowledged"
	OutcomeVerified      = "verified"
	OutcomeInvalid       = "invalid"
	OutcomeUnrecoverable = "unrecoverable"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingEvent indicates a message without an event name.
type ErrMissingEvent struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingEvent) Error() string { return "missing event" }

// ErrProcess indicates verification could not run. The message should be
// redelivered.
type ErrProcess struct {
	JobID      int64
	ExternalID string
	RequestID  string
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "verify certificate"
	}
	return "verify certificate: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Verifier re-checks a public document against its stored bytes.
type Verifier interface {
	Verify(ctx context.Context, externalID string) (documents.Verification, error)
}

// Result describes a settled message.
type Result struct {
	Message      queue.Message
	Outcome      string
	Verification *documents.Verification
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.Event) == "" {
		return msg, meta, ErrMissingEvent{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// Retryable reports whether a HandleMessage error should leave the message
// on the queue.
func Retryable(err error) bool {
	var procErr ErrProcess
	return errors.As(err, &procErr)
}

// HandleMessage parses and settles a message. Issued certificates are
// verified; every other event is acknowledged as is.
func HandleMessage(ctx context.Context, v Verifier, body string) (Result, error) {
	msg, _, err := ParseMessage(body)
	if err != nil {
		return Result{Message: msg, Outcome: OutcomeUnrecoverable}, err
	}
	if msg.Event != queue.EventDocumentIssued || strings.TrimSpace(msg.ExternalID) == "" {
		return Result{Message: msg, Outcome: OutcomeAcknowledged}, nil
	}
	if v == nil {
		return Result{Message: msg}, ErrProcess{JobID: msg.JobID, ExternalID: msg.ExternalID, RequestID: msg.RequestID, Err: errors.New("verifier not configured")}
	}

	verification, err := v.Verify(ctx, msg.ExternalID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) || errors.Is(err, documents.ErrInvalidInput) {
			return Result{Message: msg, Outcome: OutcomeUnrecoverable}, err
		}
		return Result{Message: msg}, ErrProcess{JobID: msg.JobID, ExternalID: msg.ExternalID, RequestID: msg.RequestID, Err: err}
	}
	outcome := OutcomeVerified
	if !verification.Valid {
		outcome = OutcomeInvalid
	}
	return Result{Message: msg, Outcome: outcome, Verification: &verification}, nil
}
