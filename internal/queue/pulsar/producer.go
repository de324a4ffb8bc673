package pulsar

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"

	"github.com/toolsascode/lockstep/internal/logger"
	"github.com/toolsascode/lockstep/internal/queue"
)

// Producer implements queue.Producer using Pulsar
type Producer struct {
	client   pulsar.Client
	producer pulsar.Producer
	topic    string
}

// NewProducer creates a new Pulsar producer
func NewProducer(url, topic string) (*Producer, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL: url,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pulsar client: %w", err)
	}

	producer, err := client.CreateProducer(pulsar.ProducerOptions{
		Topic: topic,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create Pulsar producer: %w", err)
	}

	return &Producer{
		client:   client,
		producer: producer,
		topic:    topic,
	}, nil
}

// PublishJob publishes a migration job to Pulsar
func (p *Producer) PublishJob(ctx context.Context, job *queue.Job) error {
	// Generate job ID if not provided
	if job.ID == "" {
		job.ID = fmt.Sprintf("job_%d", time.Now().UnixNano())
	}
	if job.SubmittedAt == "" {
		job.SubmittedAt = time.Now().Format(time.RFC3339)
	}

	// Serialize job to JSON
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	msg := &pulsar.ProducerMessage{
		Payload: jobData,
		Key:     job.ID,
		Properties: map[string]string{
			"job-id":  job.ID,
			"command": job.Command,
		},
	}

	_, err = p.producer.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send message to Pulsar: %w", err)
	}

	logger.Infof("Published migration job %s (command %q) to Pulsar topic %s", job.ID, job.Command, p.topic)
	return nil
}

// Close closes the Pulsar producer
func (p *Producer) Close() error {
	p.producer.Close()
	p.client.Close()
	return nil
}
