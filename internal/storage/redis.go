package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/tabletop-session/pkg/campaign"
	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/chat"
	"github.com/jwebster45206/tabletop-session/pkg/storage"
)

const campaignIndexKey = "campaigns"

// RedisStorage implements the Storage interface using Redis. Each campaign
// is a hash so saves merge field by field; turns are a list in append order.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance from a redis:// URL.
func NewRedisStorage(redisURL string, logger *slog.Logger) (*RedisStorage, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewRedisStorageWithClient(redis.NewClient(opt), logger), nil
}

// NewRedisStorageWithClient wraps an existing client.
func NewRedisStorageWithClient(client *redis.Client, logger *slog.Logger) *RedisStorage {
	return &RedisStorage{
		client: client,
		logger: logger,
	}
}

// Client exposes the underlying client so other components (the event
// broadcaster) can share the connection.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

func campaignKey(id uuid.UUID) string {
	return "campaign:" + id.String()
}

func turnsKey(id uuid.UUID) string {
	return "campaign:" + id.String() + ":turns"
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection polls Ping every interval until Redis answers or ctx
// ends. The API often starts before its Redis container is ready.
func (r *RedisStorage) WaitForConnection(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		err := r.Ping(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("Redis became reachable", "attempts", attempt)
			}
			return nil
		}
		r.logger.Debug("Waiting for redis", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("redis unreachable after %d attempts: %w", attempt, err)
		case <-ticker.C:
		}
	}
}

// Campaign snapshot operations

func (r *RedisStorage) SaveCampaign(ctx context.Context, c *campaign.Campaign) error {
	if c == nil {
		return errors.New("campaign cannot be nil")
	}
	pc, err := json.Marshal(c.PC)
	if err != nil {
		return fmt.Errorf("failed to marshal pc: %w", err)
	}
	inv := c.Inventory
	if inv == nil {
		inv = []character.Item{}
	}
	invData, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to marshal inventory: %w", err)
	}

	now := time.Now().UTC()
	created := c.CreatedAt
	if created.IsZero() {
		created = now
	}

	key := campaignKey(c.ID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"id", c.ID.String(),
			"title", c.Title,
			"theme", c.Theme,
			"setting", c.Setting,
			"premise", c.Premise,
			"pc", string(pc),
			"inventory", string(invData),
			"storySummary", c.StorySummary,
			"updatedAt", now.Format(time.RFC3339Nano),
		)
		pipe.HSetNX(ctx, key, "createdAt", created.Format(time.RFC3339Nano))
		pipe.SAdd(ctx, campaignIndexKey, c.ID.String())
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save campaign", "campaign_id", c.ID, "error", err)
		return fmt.Errorf("failed to save campaign: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadCampaign(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	fields, err := r.client.HGetAll(ctx, campaignKey(id)).Result()
	if err != nil {
		r.logger.Error("Failed to load campaign", "campaign_id", id, "error", err)
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if len(fields) == 0 {
		r.logger.Debug("Campaign not found", "campaign_id", id)
		return nil, nil // Return nil for not found
	}
	c, err := campaignFromHash(id, fields)
	if err != nil {
		r.logger.Error("Failed to decode campaign", "campaign_id", id, "error", err)
		return nil, err
	}
	return c, nil
}

func campaignFromHash(id uuid.UUID, f map[string]string) (*campaign.Campaign, error) {
	c := &campaign.Campaign{
		ID:           id,
		Title:        f["title"],
		Theme:        f["theme"],
		Setting:      f["setting"],
		Premise:      f["premise"],
		StorySummary: f["storySummary"],
		Inventory:    []character.Item{},
	}
	if v := f["pc"]; v != "" {
		if err := json.Unmarshal([]byte(v), &c.PC); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pc: %w", err)
		}
	}
	if v := f["inventory"]; v != "" {
		if err := json.Unmarshal([]byte(v), &c.Inventory); err != nil {
			return nil, fmt.Errorf("failed to unmarshal inventory: %w", err)
		}
	}
	var err error
	if c.CreatedAt, err = parseTime(f["createdAt"]); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(f["updatedAt"]); err != nil {
		return nil, err
	}
	return c, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", v, err)
	}
	return t, nil
}

// ListCampaigns loads every indexed campaign in parallel, most recently
// updated first.
func (r *RedisStorage) ListCampaigns(ctx context.Context) ([]*campaign.Campaign, error) {
	ids, err := r.client.SMembers(ctx, campaignIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	loaded := make([]*campaign.Campaign, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, raw := range ids {
		g.Go(func() error {
			id, err := uuid.Parse(raw)
			if err != nil {
				r.logger.Warn("Skipping malformed campaign id", "id", raw)
				return nil
			}
			c, err := r.LoadCampaign(gctx, id)
			if err != nil {
				return fmt.Errorf("failed to get campaign %s: %w", raw, err)
			}
			loaded[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*campaign.Campaign, 0, len(loaded))
	for _, c := range loaded {
		if c != nil {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *RedisStorage) UpdateStorySummary(ctx context.Context, id uuid.UUID, summary string) error {
	key := campaignKey(id)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check campaign: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("campaign not found: %s", id)
	}
	err = r.client.HSet(ctx, key,
		"storySummary", summary,
		"updatedAt", time.Now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		r.logger.Error("Failed to update story summary", "campaign_id", id, "error", err)
		return fmt.Errorf("failed to update story summary: %w", err)
	}
	return nil
}

func (r *RedisStorage) DeleteCampaign(ctx context.Context, id uuid.UUID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, campaignKey(id), turnsKey(id))
		pipe.SRem(ctx, campaignIndexKey, id.String())
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to delete campaign", "campaign_id", id, "error", err)
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	return nil
}

// Turn log operations

func (r *RedisStorage) AppendTurn(ctx context.Context, id uuid.UUID, turn chat.TurnRecord) error {
	data, err := storage.MarshalTurn(turn)
	if err != nil {
		return err
	}
	if err := r.client.RPush(ctx, turnsKey(id), string(data)).Err(); err != nil {
		r.logger.Error("Failed to append turn", "campaign_id", id, "error", err)
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

func (r *RedisStorage) ListTurns(ctx context.Context, id uuid.UUID) ([]chat.TurnRecord, error) {
	raw, err := r.client.LRange(ctx, turnsKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	turns := make([]chat.TurnRecord, 0, len(raw))
	for _, item := range raw {
		t, err := storage.UnmarshalTurn([]byte(item))
		if err != nil {
			r.logger.Warn("Skipping malformed turn", "campaign_id", id, "error", err)
			continue
		}
		turns = append(turns, t)
	}
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].CreatedAtMs < turns[j].CreatedAtMs })
	return turns, nil
}

