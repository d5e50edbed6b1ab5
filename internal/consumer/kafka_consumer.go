// Package consumer drives enrichment from a Kafka job topic.
package consumer

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const pollTimeoutMs = 100

// MessageHandler processes one message payload.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) error
}

// Client is the subset of *kafka.Consumer the poll loop needs.
type Client interface {
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	Poll(timeoutMs int) kafka.Event
	Close() error
}

// KafkaConsumer polls a topic and hands messages to a bounded set of workers.
type KafkaConsumer struct {
	client  Client
	topic   string
	handler MessageHandler
	workers int
}

// NewKafkaConsumer subscribes client to topic.
func NewKafkaConsumer(client Client, topic string, handler MessageHandler, workers int) (*KafkaConsumer, error) {
	if err := client.SubscribeTopics([]string{topic}, nil); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 1
	}
	log.WithFields(log.Fields{"topic": topic, "workers": workers}).Info("Subscribed to Kafka topic")
	return &KafkaConsumer{client: client, topic: topic, handler: handler, workers: workers}, nil
}

// Start polls until ctx is cancelled or the client reports a fatal error.
// In-flight messages are finished before it returns.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	g := new(errgroup.Group)
	g.SetLimit(c.workers)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			log.Info("Kafka consumer stopping due to context cancellation")
			return ctx.Err()
		default:
			ev := c.client.Poll(pollTimeoutMs)
			if ev == nil {
				continue
			}

			switch e := ev.(type) {
			case *kafka.Message:
				payload := e.Value
				fields := log.Fields{"topic": c.topic}
				if e.TopicPartition.Topic != nil {
					fields["partition"] = e.TopicPartition.Partition
					fields["offset"] = e.TopicPartition.Offset.String()
				}
				g.Go(func() error {
					if err := c.handler.HandleMessage(ctx, payload); err != nil {
						log.WithError(err).WithFields(fields).Error("Failed to handle message")
					}
					return nil
				})
			case kafka.Error:
				log.WithError(e).Error("Kafka error")
				if e.IsFatal() {
					return e
				}
			}
		}
	}
}

// Close releases the underlying client.
func (c *KafkaConsumer) Close() error {
	return c.client.Close()
}
