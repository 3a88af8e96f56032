/*Package notify publishes resource change notifications to Kafka.

Every notification becomes one message on the configured topic. The message
key is the resource name, so all changes of one resource land in the same
partition and keep their order. The value is a JSON object

	{"resource":"planet","operation":"create","payload":{...},"request_id":"..."}

Publishing is asynchronous. Delivery failures are logged but never reported
back to the request which caused them.
*/
package notify

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/galaxy/core"
	"github.com/relabs-tech/galaxy/core/logger"
)

// DefaultTopic is the topic used when the builder does not specify one
const DefaultTopic = "resource_notification"

// Notification is the value of a Kafka message
type Notification struct {
	Resource  string          `json:"resource"`
	Operation core.Operation  `json:"operation"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// Builder is a builder helper for the Kafka notifier
type Builder struct {
	// Brokers are the addresses of the Kafka brokers
	Brokers []string
	// Topic is the notification topic, defaults to DefaultTopic
	Topic string
}

// KafkaNotifier implements core.Notifier on top of a kafka.Writer
type KafkaNotifier struct {
	writer *kafka.Writer
}

var _ core.Notifier = (*KafkaNotifier)(nil)

// NewKafkaNotifier returns a new notifier. It panics if no brokers are given.
func NewKafkaNotifier(nb *Builder) *KafkaNotifier {
	if len(nb.Brokers) == 0 {
		panic("Brokers missing")
	}
	topic := nb.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	rlog := logger.Default().WithField("topic", topic)
	rlog.Infoln("publishing notifications to", nb.Brokers)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(nb.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				rlog.WithError(err).Errorf("Error 4801: cannot deliver %d notifications", len(messages))
			}
		},
	}
	return &KafkaNotifier{writer: writer}
}

// Notify queues a notification for resource. It never blocks on the brokers.
func (n *KafkaNotifier) Notify(ctx context.Context, resource string, operation core.Operation, payload []byte) {
	rlog := logger.FromContext(ctx)
	msg, err := message(ctx, resource, operation, payload)
	if err != nil {
		rlog.WithError(err).Errorf("Error 4802: cannot marshal notification for %s", resource)
		return
	}
	// the request context ends with the response, the message outlives it
	if err = n.writer.WriteMessages(context.Background(), msg); err != nil {
		rlog.WithError(err).Errorf("Error 4803: cannot queue notification for %s", resource)
	}
}

// Close flushes pending notifications and closes the writer
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func message(ctx context.Context, resource string, operation core.Operation, payload []byte) (kafka.Message, error) {
	notification := Notification{
		Resource:  resource,
		Operation: operation,
		RequestID: logger.RequestIDFromContext(ctx),
	}
	if len(payload) > 0 {
		notification.Payload = json.RawMessage(payload)
	}
	value, err := json.Marshal(notification)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(resource),
		Value: value,
	}, nil
}
