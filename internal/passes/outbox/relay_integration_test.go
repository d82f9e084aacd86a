//go:build integration

package outbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"mountpass/internal/passes/models"
	outboxstore "mountpass/internal/passes/store/outbox"
	"mountpass/internal/platform/postgres"
	"mountpass/pkg/testutil/containers"
)

type RelayIntegrationSuite struct {
	suite.Suite
	pg        *containers.PostgresContainer
	broker    string
	store     *outboxstore.PostgresStore
	publisher *KafkaPublisher
	topic     string
	logger    *slog.Logger
}

func TestRelayIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RelayIntegrationSuite))
}

func (s *RelayIntegrationSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *RelayIntegrationSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.TruncateTables(ctx, "outbox"))
	s.store = outboxstore.NewPostgres(s.pg.DB)

	s.topic = "pass-events-" + uuid.NewString()[:8]
	publisher, err := NewKafkaPublisher([]string{s.broker}, s.topic)
	s.Require().NoError(err)
	s.publisher = publisher
	s.Require().NoError(s.publisher.EnsureTopic(ctx, 1, 1))
}

func (s *RelayIntegrationSuite) TearDownTest() {
	s.publisher.Close()
}

func (s *RelayIntegrationSuite) appendEvent(ctx context.Context, passID int64, typ models.EventType) models.Event {
	event := models.Event{
		ID:         uuid.New(),
		Type:       typ,
		PassID:     passID,
		Status:     models.StatusNew,
		OccurredAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	s.Require().NoError(postgres.NewTx(s.pg.DB).RunInTx(ctx, func(txCtx context.Context) error {
		return s.store.Append(txCtx, event)
	}))
	return event
}

func (s *RelayIntegrationSuite) consume(ctx context.Context, n int) []*kgo.Record {
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var records []*kgo.Record
	for len(records) < n {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "timed out after %d records", len(records))
		records = append(records, fetches.Records()...)
	}
	return records
}

func (s *RelayIntegrationSuite) TestEnsureTopicIsIdempotent() {
	s.NoError(s.publisher.EnsureTopic(context.Background(), 1, 1))
	s.NoError(s.publisher.Ping(context.Background()))
}

func (s *RelayIntegrationSuite) TestRelayPublishesCommittedEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	wake := Listen(ctx, s.pg.URL, outboxstore.NotifyChannel, s.logger)
	select {
	case <-wake:
	case <-ctx.Done():
		s.FailNow("listener never connected")
	}

	relay := New(s.store, s.publisher, Config{PollInterval: time.Hour}, WithWakeup(wake), WithLogger(s.logger))
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	submitted := s.appendEvent(ctx, 42, models.EventPassSubmitted)
	changed := s.appendEvent(ctx, 42, models.EventPassStatusChanged)

	records := s.consume(ctx, 2)
	s.Require().Len(records, 2)
	for i, want := range []models.Event{submitted, changed} {
		s.Equal("42", string(records[i].Key))
		s.Equal(string(want.Type), string(records[i].Headers[0].Value))
		var got models.Event
		s.Require().NoError(json.Unmarshal(records[i].Value, &got))
		s.Equal(want.ID, got.ID)
	}

	s.Eventually(func() bool {
		pending, err := s.store.ListPending(ctx, 10)
		return err == nil && len(pending) == 0
	}, 10*time.Second, 100*time.Millisecond)

	cancel()
	s.NoError(<-done)
}
