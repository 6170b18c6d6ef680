package jobs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reachable() map[Status]bool {
	seen := map[Status]bool{StatusQuoteRequested: true}
	queue := []Status{StatusQuoteRequested}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, next := range Allowed(s) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

func TestEveryStatusReachable(t *testing.T) {
	seen := reachable()
	for _, s := range Statuses() {
		assert.True(t, seen[s], "%s unreachable", s)
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range Statuses() {
		want := s == StatusQuoteRejected || s == StatusCompleted || s == StatusCancelled
		assert.Equal(t, want, s.IsTerminal(), s.String())
		if want {
			assert.Empty(t, Allowed(s))
			assert.Empty(t, AllowedActions(s))
		}
	}
}

func TestActionsFollowTable(t *testing.T) {
	for _, a := range Actions() {
		for _, from := range Statuses() {
			if a.Permits(from) {
				assert.True(t, CanTransition(from, a.Target()), "%s from %s", a, from)
			}
		}
	}
}

func TestActionDisambiguation(t *testing.T) {
	assert.True(t, ActionAcceptQuote.Permits(StatusQuoteProvided))
	assert.False(t, ActionAcceptQuote.Permits(StatusRequestPending))
	assert.True(t, ActionDeclineRequest.Permits(StatusRequestPending))
	assert.False(t, ActionDeclineRequest.Permits(StatusQuoteProvided))
	assert.False(t, ActionRequestQuote.Permits(StatusQuoteRequested))
}

func TestCancelFromEveryLiveStatus(t *testing.T) {
	for _, s := range Statuses() {
		assert.Equal(t, !s.IsTerminal(), ActionCancel.Permits(s), s.String())
	}
}

func TestAllowedActionsScheduled(t *testing.T) {
	assert.Equal(t, []Action{ActionPostpone, ActionMarkCollected, ActionCancel}, AllowedActions(StatusScheduled))
}

func TestStatusText(t *testing.T) {
	for _, s := range Statuses() {
		parsed, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseStatus("archived")
	assert.Error(t, err)

	raw, err := json.Marshal(struct {
		Status Status `json:"status"`
	}{StatusReceivedAtFacility})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"received_at_facility"}`, string(raw))

	var out struct {
		Status Status `json:"status"`
	}
	require.Error(t, json.Unmarshal([]byte(`{"status":"bogus"}`), &out))
}

func TestPhases(t *testing.T) {
	assert.Equal(t, PhaseQuoting, StatusQuoteRejected.Phase())
	assert.Equal(t, PhaseCollection, StatusCollected.Phase())
	assert.Equal(t, PhaseProcessing, StatusReceivedAtFacility.Phase())
	assert.Equal(t, PhaseCompleted, StatusCancelled.Phase())
	assert.Equal(t, "collections", PhaseCollection.Segment())
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("mark_collected")
	require.NoError(t, err)
	assert.Equal(t, StatusCollected, a.Target())

	_, err = ParseAction("teleport")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "action", FieldOf(err))
}
