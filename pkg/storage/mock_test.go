package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/tabletop-session/pkg/campaign"
	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/chat"
)

func TestMockStorage_SaveAndLoadCampaign(t *testing.T) {
	s := NewMockStorage()
	ctx := context.Background()

	c := campaign.New("Neon Rain", character.PC{Name: "Vex", Luck: 1})
	if err := s.SaveCampaign(ctx, c); err != nil {
		t.Fatalf("Failed to save campaign: %v", err)
	}

	loaded, err := s.LoadCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("Failed to load campaign: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected non-nil campaign")
	}
	if loaded.PC.Name != "Vex" {
		t.Errorf("Expected PC name 'Vex', got %q", loaded.PC.Name)
	}

	// Loaded copies do not alias stored state
	loaded.PC.Luck = 99
	again, _ := s.LoadCampaign(ctx, c.ID)
	if again.PC.Luck != 1 {
		t.Errorf("Expected stored luck 1, got %d", again.PC.Luck)
	}
}

func TestMockStorage_SavePreservesCreatedAt(t *testing.T) {
	s := NewMockStorage()
	ctx := context.Background()

	c := campaign.New("Neon Rain", character.PC{})
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c.CreatedAt = created
	if err := s.SaveCampaign(ctx, c); err != nil {
		t.Fatal(err)
	}

	c.CreatedAt = time.Now()
	c.Title = "Neon Rain II"
	if err := s.SaveCampaign(ctx, c); err != nil {
		t.Fatal(err)
	}

	loaded, _ := s.LoadCampaign(ctx, c.ID)
	if !loaded.CreatedAt.Equal(created) {
		t.Errorf("Expected CreatedAt %v, got %v", created, loaded.CreatedAt)
	}
	if loaded.Title != "Neon Rain II" {
		t.Errorf("Expected updated title, got %q", loaded.Title)
	}
}

func TestMockStorage_LoadNonExistentCampaign(t *testing.T) {
	s := NewMockStorage()
	loaded, err := s.LoadCampaign(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Expected no error for non-existent campaign, got: %v", err)
	}
	if loaded != nil {
		t.Error("Expected nil for non-existent campaign")
	}
}

func TestMockStorage_Turns(t *testing.T) {
	s := NewMockStorage()
	ctx := context.Background()
	id := uuid.New()

	for i, ts := range []int64{30, 10, 20, 20} {
		turn := chat.TurnRecord{ID: string(rune('a' + i)), Role: chat.RoleSystem, CreatedAtMs: ts}
		if err := s.AppendTurn(ctx, id, turn); err != nil {
			t.Fatal(err)
		}
	}

	turns, err := s.ListTurns(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	var order string
	for _, tr := range turns {
		order += tr.ID
	}
	if order != "bcda" {
		t.Errorf("Expected order bcda (timestamp, then insertion), got %s", order)
	}
}

func TestMockStorage_FailureInjection(t *testing.T) {
	s := NewMockStorage()
	ctx := context.Background()
	boom := errors.New("boom")

	s.SetSaveError(boom)
	if err := s.SaveCampaign(ctx, campaign.New("x", character.PC{})); !errors.Is(err, boom) {
		t.Errorf("Expected save error, got %v", err)
	}
	s.SetAppendError(boom)
	if err := s.AppendTurn(ctx, uuid.New(), chat.TurnRecord{}); !errors.Is(err, boom) {
		t.Errorf("Expected append error, got %v", err)
	}
	s.SetPingError(boom)
	if err := s.Ping(ctx); !errors.Is(err, boom) {
		t.Errorf("Expected ping error, got %v", err)
	}
}

func TestMockStorage_UpdateStorySummaryAndDelete(t *testing.T) {
	s := NewMockStorage()
	ctx := context.Background()
	c := campaign.New("x", character.PC{})
	_ = s.SaveCampaign(ctx, c)
	_ = s.AppendTurn(ctx, c.ID, chat.TurnRecord{ID: "a"})

	if err := s.UpdateStorySummary(ctx, c.ID, "So far..."); err != nil {
		t.Fatal(err)
	}
	loaded, _ := s.LoadCampaign(ctx, c.ID)
	if loaded.StorySummary != "So far..." {
		t.Errorf("Expected summary, got %q", loaded.StorySummary)
	}
	if err := s.UpdateStorySummary(ctx, uuid.New(), "x"); err == nil {
		t.Error("Expected error for unknown campaign")
	}

	_ = s.DeleteCampaign(ctx, c.ID)
	loaded, _ = s.LoadCampaign(ctx, c.ID)
	turns, _ := s.ListTurns(ctx, c.ID)
	if loaded != nil || len(turns) != 0 {
		t.Error("Expected campaign and turns deleted")
	}
}
