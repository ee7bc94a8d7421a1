package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_JSON_UsesEpochSecondsNotRFC3339(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 500_000_000, time.UTC) // .5s fraction
	record := NewRecord(Message{MessageID: "m1", Content: "hi"}, at)

	data, err := json.Marshal(record)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	createdAt, ok := raw["created_at"].(float64)
	require.True(t, ok, "created_at must be a JSON number, not a string")
	assert.InDelta(t, float64(at.Unix())+0.5, createdAt, 0.001)
}

func TestRecord_JSON_RoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 15, 8, 30, 0, 250_000_000, time.UTC)
	original := NewRecord(Message{MessageID: "m2", Content: "hi", Metadata: map[string]string{"k": "v"}}, at)
	original.AttemptCount = 2
	original.NextRetryAt = at.Add(300 * time.Second)
	original.Status = StatusFailed

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original.MessageID, decoded.MessageID)
	assert.Equal(t, original.Message, decoded.Message)
	assert.Equal(t, original.AttemptCount, decoded.AttemptCount)
	assert.Equal(t, original.Status, decoded.Status)
	assert.WithinDuration(t, original.NextRetryAt, decoded.NextRetryAt, time.Millisecond)
	assert.WithinDuration(t, original.CreatedAt, decoded.CreatedAt, time.Millisecond)
	assert.WithinDuration(t, original.UpdatedAt, decoded.UpdatedAt, time.Millisecond)
}

func TestRecord_Sequence_NotPersisted(t *testing.T) {
	record := NewRecord(Message{MessageID: "m3", Content: "hi"}, time.Now())
	record.SetSequence(42)

	data, err := json.Marshal(record)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sequence")

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, uint64(0), decoded.Sequence())
}

func TestRecord_Clone_DoesNotAliasMetadata(t *testing.T) {
	record := NewRecord(Message{MessageID: "m4", Content: "hi", Metadata: map[string]string{"a": "1"}}, time.Now())
	clone := record.Clone()
	clone.Message.Metadata["a"] = "2"

	assert.Equal(t, "1", record.Message.Metadata["a"])
	assert.Equal(t, "2", clone.Message.Metadata["a"])
}

func TestMessage_Validate(t *testing.T) {
	assert.ErrorIs(t, Message{}.Validate(), ErrEmptyMessageID)
	assert.NoError(t, Message{MessageID: "x"}.Validate())
}
