package consumers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lma-docpulse/internal/config"
	"github.com/segmentio/kafka-go"
)

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer defines the message queue consumer interface
type Consumer interface {
	Subscribe(ctx context.Context, handler MessageHandler) error
	Done() <-chan struct{}
	Close() error
}

// MessageReader wraps the kafka.Reader methods the consumer needs
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer implements Consumer using Kafka
type KafkaConsumer struct {
	reader     MessageReader
	topic      string
	groupID    string
	retryDelay time.Duration
	done       chan struct{}
	logger     *slog.Logger
}

// NewKafkaConsumer reads analysis requests as part of the configured consumer group
func NewKafkaConsumer(logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	startOffset := cfg.StartOffset
	if startOffset == 0 {
		startOffset = kafka.FirstOffset
	}

	return newKafkaConsumer(logger, kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{cfg.Brokers},
		Topic:       cfg.AnalysisTopic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: startOffset,
	}), cfg.AnalysisTopic, cfg.ConsumerGroup)
}

func newKafkaConsumer(logger *slog.Logger, reader MessageReader, topic, groupID string) *KafkaConsumer {
	return &KafkaConsumer{
		reader:     reader,
		topic:      topic,
		groupID:    groupID,
		retryDelay: time.Second,
		done:       make(chan struct{}),
		logger:     logger.With("topic", topic, "group_id", groupID),
	}
}

// Subscribe starts the fetch loop in the background. Offsets are committed only after
// handler succeeds; the loop stops when ctx is cancelled and then closes Done().
func (c *KafkaConsumer) Subscribe(ctx context.Context, handler MessageHandler) error {
	if c.reader == nil {
		return errors.New("kafka reader is not initialized")
	}
	c.logger.Info("Subscribed to Kafka topic")

	go func() {
		defer close(c.done)
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Info("Context canceled, stopping consumer")
					return
				}
				c.logger.Error("Failed to fetch message from Kafka", "error", err)

				select {
				case <-ctx.Done():
					return
				case <-time.After(c.retryDelay):
				}
				continue
			}

			logger := c.logger.With(
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
			)
			logger.Debug("Received message from Kafka")

			if err := handler(ctx, msg.Key, msg.Value); err != nil {
				// Failed messages are not committed to allow for reprocessing or DLQ handling
				logger.Error("Failed to process message, will not commit offset", "error", err)
				continue
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Error("Failed to commit message after successful processing", "error", err)
				continue
			}
			logger.Debug("Message committed successfully")
		}
	}()

	return nil
}

// Done is closed once the fetch loop has exited
func (c *KafkaConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
