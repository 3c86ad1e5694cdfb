package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kgo"
)

var produceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "onboard_notification_produce_failures_total",
	Help: "Notification records the broker did not acknowledge",
}, []string{"type"})

// KafkaNotifier produces events to a topic keyed by session id, so one
// subscriber's notifications stay ordered on one partition. Produce is
// asynchronous; delivery failures are logged and counted.
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewKafkaNotifier(client *kgo.Client, topic string, logger *slog.Logger) *KafkaNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaNotifier{client: client, topic: topic, logger: logger}
}

func (n *KafkaNotifier) Notify(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(event.SessionID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	n.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err == nil {
			return
		}
		produceFailures.WithLabelValues(string(event.Type)).Inc()
		n.logger.Error("failed to produce notification",
			"type", string(event.Type),
			"session_id", event.SessionID,
			"topic", r.Topic,
			"error", err,
		)
	})
	return nil
}

// Flush waits for buffered records to be acknowledged.
func (n *KafkaNotifier) Flush(ctx context.Context) error {
	return n.client.Flush(ctx)
}
