package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwebster45206/tabletop-session/pkg/campaign"
	"github.com/jwebster45206/tabletop-session/pkg/chat"
)

// Storage defines the persistence contract for campaigns: a document
// snapshot per campaign plus an ordered, append-only turn log.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Snapshot operations. LoadCampaign returns nil, nil when the campaign
	// does not exist. SaveCampaign is an upsert that keeps the original
	// CreatedAt.
	SaveCampaign(ctx context.Context, c *campaign.Campaign) error
	LoadCampaign(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error)
	ListCampaigns(ctx context.Context) ([]*campaign.Campaign, error)
	UpdateStorySummary(ctx context.Context, id uuid.UUID, summary string) error
	DeleteCampaign(ctx context.Context, id uuid.UUID) error

	// Turn log operations. Turns are ordered by CreatedAtMs, then by
	// insertion.
	AppendTurn(ctx context.Context, id uuid.UUID, turn chat.TurnRecord) error
	ListTurns(ctx context.Context, id uuid.UUID) ([]chat.TurnRecord, error)
}
