package queue

import "encoding/json"

// Event names published after a transition commits.
const (
	EventJobTransitioned = "job.transitioned"
	EventDocumentIssued  = "document.issued"
)

// Message is the payload sent to downstream queue consumers.
type Message struct {
	Event      string `json:"event"`
	JobID      int64  `json:"jobId"`
	JobCode    string `json:"jobCode"`
	Action     string `json:"action,omitempty"`
	Status     string `json:"status,omitempty"`
	Version    int64  `json:"version,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
	Kind       string `json:"kind,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	OccurredAt string `json:"occurredAt"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
