package queue_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/carevault/pkg/queue"
)

func TestRecordActionMessageRoundTrip(t *testing.T) {
	topic, msg, err := queue.NewRecordActionMessage(
		queue.RecordActionPayload{RecordID: 7, PatientID: 42, Action: "upload", Actor: "admin"},
		queue.WithProducer("carevault"),
		queue.WithTraceID("abc"),
	)
	require.NoError(t, err)
	assert.Equal(t, queue.TopicRecordUploaded, topic)
	assert.Equal(t, "upload", msg.Metadata.Get("action"))
	assert.Equal(t, "abc", msg.Metadata.Get("trace_id"))

	env, err := queue.ParseRecordAction(msg)
	require.NoError(t, err)
	assert.Equal(t, queue.TopicRecordUploaded, env.Header.Topic)
	assert.Equal(t, "carevault", env.Header.Producer)
	assert.Equal(t, queue.PayloadVersionV1, env.Header.Version)
	assert.Equal(t, int64(42), env.Payload.PatientID)
	assert.Equal(t, uint(7), env.Payload.RecordID)
}

func TestUnknownAction(t *testing.T) {
	_, _, err := queue.NewRecordActionMessage(queue.RecordActionPayload{Action: "view"})

	var uae *queue.UnknownActionError
	require.True(t, errors.As(err, &uae))
	assert.Equal(t, "view", uae.Action)
}

func TestEveryRecordTopicHasAnAction(t *testing.T) {
	seen := map[string]bool{}

	for _, a := range []string{"upload", "download", "decrypt", "receive", "search"} {
		topic, ok := queue.TopicForAction(a)
		require.True(t, ok, a)

		seen[topic] = true
	}

	for _, topic := range queue.RecordTopics {
		assert.True(t, seen[topic], topic)
	}
}
