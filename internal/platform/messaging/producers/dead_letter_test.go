package producers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDLQProducer_PublishToDLQ(t *testing.T) {
	ctx := context.Background()
	newProducer := func(w KafkaWriter) *DLQProducer {
		return &DLQProducer{
			logger:      discardLogger(),
			writer:      w,
			dlqTopic:    "document_analysis_requests_dlq",
			sourceTopic: "document_analysis_requests",
		}
	}

	t.Run("SuccessfulPublishToDLQ", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := newProducer(mockWriter)

		key := "original-key"
		original := []byte(`{"document_id":"not-a-uuid"}`)
		reason := "unmarshal failed"

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || string(msgs[0].Key) != key || len(msgs[0].Headers) != 2 {
				return false
			}
			var payload dlqPayload
			if err := json.Unmarshal(msgs[0].Value, &payload); err != nil {
				return false
			}
			return payload.OriginalKey == key &&
				payload.OriginalValue == string(original) &&
				payload.SourceTopic == "document_analysis_requests" &&
				payload.DLQReason == reason &&
				payload.Timestamp != ""
		})).Return(nil).Once()

		require.NoError(t, producer.PublishToDLQ(ctx, key, original, reason))
		mockWriter.AssertExpectations(t)
	})

	t.Run("PublishToDLQReturnsErrorOnWriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		writerError := errors.New("kafka DLQ write error")
		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerError).Once()

		err := newProducer(mockWriter).PublishToDLQ(ctx, "k", []byte("v"), "writer_error")
		assert.ErrorIs(t, err, writerError)
	})

	t.Run("DisabledProducer", func(t *testing.T) {
		var producer *DLQProducer
		assert.ErrorIs(t, producer.PublishToDLQ(ctx, "k", []byte("v"), "disabled"), ErrDLQDisabled)
		assert.ErrorIs(t, newProducer(nil).PublishToDLQ(ctx, "k", []byte("v"), "disabled"), ErrDLQDisabled)
	})
}

func TestDLQProducer_Close(t *testing.T) {
	t.Run("SuccessfulClose", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		mockWriter.On("Close").Return(nil).Once()
		producer := &DLQProducer{logger: discardLogger(), writer: mockWriter, dlqTopic: "dlq"}

		require.NoError(t, producer.Close())
		mockWriter.AssertExpectations(t)
	})

	t.Run("CloseReturnsErrorOnWriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		closeError := errors.New("kafka DLQ close error")
		mockWriter.On("Close").Return(closeError).Once()
		producer := &DLQProducer{logger: discardLogger(), writer: mockWriter, dlqTopic: "dlq"}

		assert.ErrorIs(t, producer.Close(), closeError)
	})

	t.Run("DisabledProducerClosesCleanly", func(t *testing.T) {
		var producer *DLQProducer
		assert.NoError(t, producer.Close())
	})
}
