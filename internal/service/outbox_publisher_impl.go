package service

import (
	"context"
	"log/slog"

	"github.com/redis/rueidis"

	"github.com/opencourt/pairing-settlement/internal/repository"
)

// OutboxPublisherImpl implements OutboxPublisher: it drains unpublished
// outbox rows to a Redis stream. Publish and mark-published are not atomic,
// so consumers must tolerate duplicates; they dedupe on event_id.
type OutboxPublisherImpl struct {
	outboxRepo  repository.OutboxRepository
	redisClient rueidis.Client
	streamKey   string
	logger      *slog.Logger
}

// NewOutboxPublisherImpl creates a new OutboxPublisher implementation.
func NewOutboxPublisherImpl(outboxRepo repository.OutboxRepository, redisClient rueidis.Client, streamKey string, logger *slog.Logger) OutboxPublisher {
	return &OutboxPublisherImpl{
		outboxRepo:  outboxRepo,
		redisClient: redisClient,
		streamKey:   streamKey,
		logger:      logger,
	}
}

// ProcessUnpublished publishes up to limit pending events in insertion order.
// A failed publish skips the event and retries on the next tick; later events
// still go out, so cross-aggregate ordering is best effort only.
func (s *OutboxPublisherImpl) ProcessUnpublished(ctx context.Context, limit int) error {
	events, err := s.outboxRepo.ListUnpublished(ctx, limit)
	if err != nil {
		return err
	}

	for _, event := range events {
		cmd := s.redisClient.B().Xadd().Key(s.streamKey).Id("*").
			FieldValue().FieldValue("event_id", event.EventID).
			FieldValue("event_type", event.EventType).
			FieldValue("payload", string(event.Payload)).
			Build()

		if err := s.redisClient.Do(ctx, cmd).Error(); err != nil {
			s.logger.Error("failed to publish event",
				slog.Int64("id", event.ID),
				slog.String("error", err.Error()),
			)

			continue
		}

		if err := s.outboxRepo.MarkPublished(ctx, event.ID); err != nil {
			s.logger.Error("failed to mark event as published",
				slog.Int64("id", event.ID),
				slog.String("error", err.Error()),
			)

			continue
		}

		s.logger.Debug("published event",
			slog.Int64("id", event.ID),
			slog.String("event_type", event.EventType),
			slog.String("stream", s.streamKey),
		)
	}

	return nil
}
