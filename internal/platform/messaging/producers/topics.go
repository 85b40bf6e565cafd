package producers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const topicReadAttempts = 5

var topicRetryDelay = 2 * time.Second

// ensureTopic creates topic when the broker reports it missing. Transient metadata errors
// are retried; if they persist the topic is created anyway and the broker decides.
func ensureTopic(ctx context.Context, admin TopicAdmin, topic string, numPartitions, replicationFactor int, logger *slog.Logger) error {
	logger = logger.With("topic", topic)

	var lastErr error
	for attempt := 1; attempt <= topicReadAttempts; attempt++ {
		partitions, err := admin.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			logger.Debug("Kafka topic already exists", "partitions", len(partitions))
			return nil
		}
		if err == nil || errors.Is(err, kafka.UnknownTopicOrPartition) {
			lastErr = nil
			break
		}

		lastErr = err
		logger.Warn("Failed to read topic partitions, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(topicRetryDelay):
		}
	}

	if numPartitions <= 0 {
		numPartitions = 1
	}
	if replicationFactor <= 0 {
		replicationFactor = 1
	}

	logger.Info("Creating Kafka topic",
		"partitions", numPartitions,
		"replication_factor", replicationFactor,
		"last_read_error", lastErr,
	)
	err := admin.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	return nil
}
