package queuefactory

import (
	"fmt"
	"strings"

	"github.com/toolsascode/lockstep/internal/config"
	"github.com/toolsascode/lockstep/internal/queue"
	"github.com/toolsascode/lockstep/internal/queue/kafka"
	"github.com/toolsascode/lockstep/internal/queue/pulsar"
)

// NewQueue creates a new queue based on the configuration
func NewQueue(cfg *config.Config) (queue.Queue, error) {
	queueType := strings.ToLower(cfg.Queue.Type)
	if queueType == "" {
		queueType = "kafka" // Default to Kafka
	}

	switch queueType {
	case "kafka":
		if len(cfg.Queue.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka brokers are required")
		}
		if cfg.Queue.KafkaTopic == "" {
			return nil, fmt.Errorf("kafka topic is required")
		}
		groupID := cfg.Queue.KafkaGroupID
		if groupID == "" {
			groupID = "lockstep-migration-workers"
		}
		return kafka.NewQueue(cfg.Queue.KafkaBrokers, cfg.Queue.KafkaTopic, groupID), nil

	case "pulsar":
		if cfg.Queue.PulsarURL == "" {
			return nil, fmt.Errorf("pulsar URL is required")
		}
		if cfg.Queue.PulsarTopic == "" {
			return nil, fmt.Errorf("pulsar topic is required")
		}
		subscription := cfg.Queue.PulsarSubscription
		if subscription == "" {
			subscription = "lockstep-migration-workers"
		}
		return pulsar.NewQueue(cfg.Queue.PulsarURL, cfg.Queue.PulsarTopic, subscription)

	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: kafka, pulsar)", cfg.Queue.Type)
	}
}
