//go:build integration

package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"onboard/internal/notify"
	"onboard/internal/platform/config"
	"onboard/internal/platform/kafka"
	"onboard/pkg/testutil/containers"
)

type KafkaNotifierSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	client   *kgo.Client
}

func TestKafkaNotifierSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaNotifierSuite))
}

func (s *KafkaNotifierSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
	client, err := kafka.New(config.KafkaConfig{
		Brokers:           s.redpanda.Brokers,
		ClientID:          "onboard-test",
		NotificationTopic: "onboard.notifications.test",
	})
	s.Require().NoError(err)
	s.client = client
}

func (s *KafkaNotifierSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *KafkaNotifierSuite) TestNotifyProducesKeyedRecord() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "onboard.notifications." + time.Now().Format("150405.000000")
	s.Require().NoError(kafka.EnsureTopic(ctx, s.client, topic, 1, 1))
	// idempotent on an existing topic
	s.Require().NoError(kafka.EnsureTopic(ctx, s.client, topic, 1, 1))

	notifier := notify.NewKafkaNotifier(s.client, topic, slog.New(slog.NewTextHandler(io.Discard, nil)))
	event := notify.Event{
		Type:       notify.EventAccountIssued,
		SessionID:  "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		Language:   "hi",
		Attributes: map[string]string{"account_number": "1100 0000 0001"},
		OccurredAt: time.Now().UTC(),
	}
	s.Require().NoError(notifier.Notify(ctx, event))
	s.Require().NoError(notifier.Flush(ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var record *kgo.Record
	for record == nil {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "timed out waiting for notification")
		fetches.EachRecord(func(r *kgo.Record) {
			if record == nil {
				record = r
			}
		})
	}

	s.Equal(event.SessionID, string(record.Key))
	s.Require().Len(record.Headers, 1)
	s.Equal("event_type", record.Headers[0].Key)
	s.Equal(string(notify.EventAccountIssued), string(record.Headers[0].Value))

	var got notify.Event
	s.Require().NoError(json.Unmarshal(record.Value, &got))
	s.Equal(event.Type, got.Type)
	s.Equal(event.Attributes, got.Attributes)
}
