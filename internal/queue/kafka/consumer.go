package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/toolsascode/lockstep/internal/logger"
	"github.com/toolsascode/lockstep/internal/queue"
)

// Consumer implements queue.Consumer using Kafka
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{
		reader: reader,
		topic:  topic,
	}
}

// Consume starts consuming jobs from Kafka
func (c *Consumer) Consume(ctx context.Context, handler queue.JobHandler) error {
	logger.Infof("Starting Kafka consumer for topic %s", c.topic)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Kafka consumer context cancelled")
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				return fmt.Errorf("failed to read message from Kafka: %w", err)
			}

			var job queue.Job
			if err := json.Unmarshal(msg.Value, &job); err != nil {
				logger.Errorf("Failed to unmarshal job from Kafka message: %v", err)
				// Continue processing other messages
				continue
			}

			// Extract job ID from headers if not in body
			if job.ID == "" {
				for _, header := range msg.Headers {
					if header.Key == "job-id" {
						job.ID = string(header.Value)
						break
					}
				}
			}

			logger.Infof("Processing migration job %s from Kafka", job.ID)

			result, err := handler(ctx, &job)
			if err != nil {
				logger.Errorf("Failed to process migration job %s: %v", job.ID, err)
				// Continue processing other messages
				continue
			}

			if result != nil {
				if result.Success {
					logger.Infof("Migration job %s completed at version %d", job.ID, result.Version)
				} else {
					logger.Warnf("Migration job %s failed: %s", job.ID, result.Error)
				}
			}
		}
	}
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
