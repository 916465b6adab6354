package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jwebster45206/tabletop-session/pkg/campaign"
	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/chat"
	"github.com/jwebster45206/tabletop-session/pkg/storage"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	theme         TEXT NOT NULL DEFAULT '',
	setting       TEXT NOT NULL DEFAULT '',
	premise       TEXT NOT NULL DEFAULT '',
	pc            TEXT NOT NULL,
	inventory     TEXT NOT NULL,
	story_summary TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS turns (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL,
	campaign_id   TEXT NOT NULL,
	role          TEXT NOT NULL,
	text          TEXT NOT NULL,
	extras        TEXT,
	created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS turns_campaign_order ON turns (campaign_id, created_at_ms, seq);
`

// SQLiteStorage implements the Storage interface on a local SQLite file.
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStorage implements Storage interface
var _ storage.Storage = (*SQLiteStorage)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens (creating if needed) a SQLite database at path and
// applies the schema.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStorage{db: db, logger: logger}, nil
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStorage) SaveCampaign(ctx context.Context, c *campaign.Campaign) error {
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, title, theme, setting, premise, pc, inventory, story_summary, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   theme = excluded.theme,
		   setting = excluded.setting,
		   premise = excluded.premise,
		   pc = excluded.pc,
		   inventory = excluded.inventory,
		   story_summary = excluded.story_summary,
		   updated_at = excluded.updated_at`,
		c.ID.String(), c.Title, c.Theme, c.Setting, c.Premise,
		string(pc), string(invData), c.StorySummary,
		toMillis(created), toMillis(now),
	)
	if err != nil {
		s.logger.Error("Failed to save campaign", "campaign_id", c.ID, "error", err)
		return fmt.Errorf("failed to save campaign: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*campaign.Campaign, error) {
	var (
		id, pc, inv      string
		created, updated int64
		c                campaign.Campaign
	)
	if err := row.Scan(&id, &c.Title, &c.Theme, &c.Setting, &c.Premise, &pc, &inv, &c.StorySummary, &created, &updated); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid campaign id %q: %w", id, err)
	}
	c.ID = parsed
	if err := json.Unmarshal([]byte(pc), &c.PC); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pc: %w", err)
	}
	if err := json.Unmarshal([]byte(inv), &c.Inventory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inventory: %w", err)
	}
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	return &c, nil
}

const campaignColumns = `id, title, theme, setting, premise, pc, inventory, story_summary, created_at, updated_at`

func (s *SQLiteStorage) LoadCampaign(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id.String())
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Return nil for not found
	}
	if err != nil {
		s.logger.Error("Failed to load campaign", "campaign_id", id, "error", err)
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	return c, nil
}

func (s *SQLiteStorage) ListCampaigns(ctx context.Context) ([]*campaign.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+campaignColumns+` FROM campaigns ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var out []*campaign.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) UpdateStorySummary(ctx context.Context, id uuid.UUID, summary string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET story_summary = ?, updated_at = ? WHERE id = ?`,
		summary, toMillis(time.Now()), id.String())
	if err != nil {
		return fmt.Errorf("failed to update story summary: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("campaign not found: %s", id)
	}
	return nil
}

func (s *SQLiteStorage) DeleteCampaign(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE campaign_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStorage) AppendTurn(ctx context.Context, id uuid.UUID, turn chat.TurnRecord) error {
	var extras sql.NullString
	if len(turn.Extras) > 0 {
		data, err := json.Marshal(turn.Extras)
		if err != nil {
			return fmt.Errorf("failed to marshal extras: %w", err)
		}
		extras = sql.NullString{String: string(data), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, campaign_id, role, text, extras, created_at_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, id.String(), string(turn.Role), turn.Text, extras, turn.CreatedAtMs)
	if err != nil {
		s.logger.Error("Failed to append turn", "campaign_id", id, "error", err)
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) queryTurns(ctx context.Context, query string, args ...any) ([]chat.TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	turns := []chat.TurnRecord{}
	for rows.Next() {
		var (
			t      chat.TurnRecord
			role   string
			extras sql.NullString
		)
		if err := rows.Scan(&t.ID, &role, &t.Text, &extras, &t.CreatedAtMs); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Role = chat.Role(role)
		if extras.Valid && extras.String != "" {
			if err := json.Unmarshal([]byte(extras.String), &t.Extras); err != nil {
				s.logger.Warn("Dropping malformed turn extras", "turn_id", t.ID, "error", err)
			}
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *SQLiteStorage) ListTurns(ctx context.Context, id uuid.UUID) ([]chat.TurnRecord, error) {
	return s.queryTurns(ctx,
		`SELECT id, role, text, extras, created_at_ms FROM turns
		 WHERE campaign_id = ? ORDER BY created_at_ms, seq`, id.String())
}
