// Package main provides the registration event consumer for Redis Streams.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/rueidis"

	"github.com/opencourt/pairing-settlement/internal/config"
	"github.com/opencourt/pairing-settlement/internal/logger"
	"github.com/opencourt/pairing-settlement/internal/model"
	"github.com/opencourt/pairing-settlement/internal/repository"
	"github.com/opencourt/pairing-settlement/internal/service"
)

const (
	redisBlockTimeout = 1000 // milliseconds
	errorRetryDelay   = 1 * time.Second
	signalBufferSize  = 1
	exitCode          = 1
)

// MessageHandler processes registration events from Redis Streams.
type MessageHandler struct {
	redisClient rueidis.Client
	consumer    service.RegistrationConsumer
}

// NewMessageHandler creates a new message handler instance.
func NewMessageHandler(redisClient rueidis.Client, consumer service.RegistrationConsumer) *MessageHandler {
	return &MessageHandler{
		redisClient: redisClient,
		consumer:    consumer,
	}
}

// gatewayCharger requests the guarantee charge from the payment gateway. The
// outcome lands later as a webhook on the API process.
type gatewayCharger struct{}

func (gatewayCharger) CreateSecondChargeIntent(_ context.Context, pairing *model.Pairing) (string, error) {
	intentID := "pi_" + uuid.NewString()

	slog.Info("second charge requested from gateway",
		slog.Int64("pairing_id", pairing.ID),
		slog.String("captain_user_id", pairing.CaptainUserID),
		slog.String("intent_id", intentID),
	)

	return intentID, nil
}

func setupRedisClient(cfg *config.Config) (rueidis.Client, error) {
	return rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{cfg.RedisAddr},
	})
}

func setupSignalHandling() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, signalBufferSize)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("shutdown signal received, stopping consumer")
		cancel()
	}()

	return ctx, cancel
}

func createConsumerGroup(ctx context.Context, redisClient rueidis.Client, streamKey, groupName string) {
	createGroupCmd := redisClient.B().XgroupCreate().Key(streamKey).Group(groupName).Id("0").Mkstream().Build()
	if err := redisClient.Do(ctx, createGroupCmd).Error(); err != nil {
		slog.Info("consumer group creation result (may already exist)", slog.String("error", err.Error()))
	}
}

func runConsumerLoop(ctx context.Context, handler *MessageHandler, streamKey, groupName, consumerName string) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("consumer stopped")
			return
		default:
			if err := handler.consumeMessages(ctx, streamKey, groupName, consumerName); err != nil {
				slog.Error("error consuming messages", slog.String("error", err.Error()))
				time.Sleep(errorRetryDelay)
			}
		}
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	loggerInstance := logger.Setup(cfg.LogLevel, "consumer")
	slog.SetDefault(loggerInstance)

	dbPool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer dbPool.Close()

	redisClient, err := setupRedisClient(cfg)
	if err != nil {
		slog.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer redisClient.Close()

	store := repository.NewStore(dbPool)
	consumer := service.NewRegistrationConsumerImpl(store, gatewayCharger{}, loggerInstance)
	handler := NewMessageHandler(redisClient, consumer)

	ctx, cancel := setupSignalHandling()
	defer cancel()

	createConsumerGroup(ctx, redisClient, cfg.EventStreamKey, cfg.ConsumerGroup)

	slog.Info("starting registration consumer",
		slog.String("stream", cfg.EventStreamKey),
		slog.String("group", cfg.ConsumerGroup),
		slog.String("consumer", cfg.ConsumerName),
	)

	runConsumerLoop(ctx, handler, cfg.EventStreamKey, cfg.ConsumerGroup, cfg.ConsumerName)
}

func (h *MessageHandler) readMessages(
	ctx context.Context,
	streamKey, groupName, consumerName string,
) (map[string][]rueidis.XRangeEntry, error) {
	readCmd := h.redisClient.B().Xreadgroup().Group(groupName, consumerName).
		Count(1).
		Block(redisBlockTimeout).
		Streams().
		Key(streamKey).
		Id(">").
		Build()

	result := h.redisClient.Do(ctx, readCmd)
	if err := result.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil // block timeout, nothing pending
		}

		return nil, err
	}

	return result.AsXRead()
}

func (h *MessageHandler) acknowledgeMessage(ctx context.Context, streamKey, groupName, messageID string) {
	ackCmd := h.redisClient.B().Xack().Key(streamKey).Group(groupName).Id(messageID).Build()
	if err := h.redisClient.Do(ctx, ackCmd).Error(); err != nil {
		slog.Error("failed to ACK message",
			slog.String("message_id", messageID),
			slog.String("error", err.Error()),
		)
	} else {
		slog.Debug("ACKed message", slog.String("message_id", messageID))
	}
}

func (h *MessageHandler) processStreamMessages(
	ctx context.Context,
	streamKey, groupName string,
	messages []rueidis.XRangeEntry,
) {
	for _, message := range messages {
		if err := h.processMessage(ctx, message); err != nil {
			// No ACK: the message stays pending and is redelivered.
			slog.Error("failed to process message",
				slog.String("message_id", message.ID),
				slog.String("error", err.Error()),
			)

			continue
		}

		h.acknowledgeMessage(ctx, streamKey, groupName, message.ID)
	}
}

func (h *MessageHandler) consumeMessages(ctx context.Context, streamKey, groupName, consumerName string) error {
	streams, err := h.readMessages(ctx, streamKey, groupName, consumerName)
	if err != nil {
		return err
	}

	if streams == nil {
		return nil
	}

	for streamName, messages := range streams {
		slog.Debug("processing stream",
			slog.String("stream", streamName),
			slog.Int("message_count", len(messages)),
		)
		h.processStreamMessages(ctx, streamKey, groupName, messages)
	}

	return nil
}

func (h *MessageHandler) processMessage(ctx context.Context, message rueidis.XRangeEntry) error {
	slog.Debug("received message",
		slog.String("message_id", message.ID),
		slog.Any("fields", message.FieldValues),
	)

	eventType, ok := message.FieldValues["event_type"]
	if !ok {
		return errors.New("missing event_type in message")
	}

	payloadStr, ok := message.FieldValues["payload"]
	if !ok {
		return errors.New("missing payload in message")
	}

	switch eventType {
	case model.EventRegistrationStatusChanged, model.EventSecondChargeDue, model.EventRegistrationExpired:
	default:
		// Other subsystems share the stream; their events are not ours.
		slog.Debug("skipping event", slog.String("event_type", eventType))
		return nil
	}

	var payload model.RegistrationEventPayload
	if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
		return fmt.Errorf("failed to parse %s payload: %w", eventType, err)
	}

	switch eventType {
	case model.EventRegistrationStatusChanged:
		return h.consumer.HandleStatusChanged(ctx, &payload)
	case model.EventSecondChargeDue:
		return h.consumer.HandleSecondChargeDue(ctx, &payload)
	case model.EventRegistrationExpired:
		return h.consumer.HandleExpired(ctx, &payload)
	default:
		return nil
	}
}
