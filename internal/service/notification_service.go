package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/events"
)

// NotificationService relays committed domain events to the outbound
// Redis channel. Delivery is fire-and-forget: a publish failure is
// logged and never surfaces to the operation that emitted the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	client     *redis.Client
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, client *redis.Client, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		client:     client,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAccountCreated, n.handleAccountCreated)
	n.dispatcher.Subscribe(events.EventSessionRefreshed, n.handleSessionRefreshed)
}

func (n *NotificationService) handleAccountCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("AccountCreated", zap.Int64("account_id", event.AccountID))
	n.publish(ctx, event)
	return nil
}

func (n *NotificationService) handleSessionRefreshed(ctx context.Context, event events.Event) error {
	n.logger.Debug("SessionRefreshed", zap.Int64("account_id", event.AccountID))
	n.publish(ctx, event)
	return nil
}

func (n *NotificationService) publish(ctx context.Context, event events.Event) {
	if n.client == nil || n.cfg.Channel == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("marshal event", zap.String("event_id", event.ID), zap.Error(err))
		return
	}

	if err := n.client.Publish(ctx, n.cfg.Channel, payload).Err(); err != nil {
		n.logger.Warn("publish event",
			zap.String("event_id", event.ID),
			zap.String("channel", n.cfg.Channel),
			zap.Error(err))
	}
}
