package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/tabletop-session/pkg/session"
)

// Message is one session event as published on a campaign channel.
type Message struct {
	Type       session.EventKind `json:"type"`
	CampaignID string            `json:"campaign_id"`
	Seq        int               `json:"seq"`
	Event      session.Event     `json:"event"`
}

// Channel returns the pub/sub channel for a campaign.
func Channel(campaignID uuid.UUID) string {
	return fmt.Sprintf("campaign-events:%s", campaignID.String())
}

// Broadcaster publishes session events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

var _ session.Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Publish sends each event as its own message, in order, on the campaign
// channel. It stops at the first failure.
func (b *Broadcaster) Publish(ctx context.Context, campaignID uuid.UUID, evts []session.Event) error {
	channel := Channel(campaignID)
	for i, e := range evts {
		msg := Message{
			Type:       e.Kind,
			CampaignID: campaignID.String(),
			Seq:        i,
			Event:      e,
		}
		data, err := json.Marshal(msg)
		if err != nil {
			b.logger.Error("Failed to marshal event", "error", err, "kind", e.Kind)
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
			b.logger.Error("Failed to publish event", "error", err, "channel", channel)
			return fmt.Errorf("failed to publish event: %w", err)
		}
	}

	b.logger.Debug("Events published",
		"channel", channel,
		"count", len(evts),
	)
	return nil
}

// Subscribe opens a subscription to a campaign channel. The caller must
// close it.
func (b *Broadcaster) Subscribe(ctx context.Context, campaignID uuid.UUID) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(campaignID))
}

// Decode parses a published payload.
func Decode(payload string) (*Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &msg, nil
}
