package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/jwebster45206/tabletop-session/pkg/campaign"
	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/chat"
	"github.com/jwebster45206/tabletop-session/pkg/session"
	"github.com/jwebster45206/tabletop-session/pkg/storage"
)

// Game runs an orchestrator in-process for the console.
type Game struct {
	store      storage.Storage
	console    *ConsoleConfig
	sessionCfg session.Config
	orch       *session.Orchestrator
}

// campaignChoice is one row of the campaign picker. A nil ID means "create
// a new campaign".
type campaignChoice struct {
	ID    uuid.UUID
	Label string
}

type campaignsLoadedMsg struct {
	choices []campaignChoice
	err     error
}

type sessionStartedMsg struct {
	history []session.Event
	events  []session.Event
	err     error
}

type eventsMsg struct {
	events []session.Event
	err    error
}

func (g *Game) loadCampaigns() tea.Cmd {
	return func() tea.Msg {
		list, err := g.store.ListCampaigns(context.Background())
		if err != nil {
			return campaignsLoadedMsg{err: err}
		}
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		})
		choices := make([]campaignChoice, 0, len(list)+1)
		choices = append(choices, campaignChoice{Label: "+ New campaign"})
		for _, c := range list {
			choices = append(choices, campaignChoice{
				ID:    c.ID,
				Label: fmt.Sprintf("%s (%s)", c.Title, c.PC.Name),
			})
		}
		return campaignsLoadedMsg{choices: choices}
	}
}

// start creates the campaign if needed, replays its history for display
// and starts the session.
func (g *Game) start(choice campaignChoice) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		id := choice.ID
		if id == uuid.Nil {
			c := campaign.New(g.console.CampaignTitle, character.PC{Name: g.console.PCName})
			if err := g.store.SaveCampaign(ctx, c); err != nil {
				return sessionStartedMsg{err: fmt.Errorf("failed to create campaign: %w", err)}
			}
			id = c.ID
		}

		turns, err := g.store.ListTurns(ctx, id)
		if err != nil {
			return sessionStartedMsg{err: fmt.Errorf("failed to load history: %w", err)}
		}

		g.orch = session.New(id, g.sessionCfg)
		events, err := g.orch.Start(ctx)
		return sessionStartedMsg{history: turnsToEvents(turns), events: events, err: err}
	}
}

func turnsToEvents(turns []chat.TurnRecord) []session.Event {
	out := make([]session.Event, len(turns))
	for i, t := range turns {
		out[i] = session.Event{Kind: session.EventKind(t.Role), Text: t.Text}
	}
	return out
}

// action wraps an orchestrator call as a tea.Cmd.
func (g *Game) action(fn func(ctx context.Context, o *session.Orchestrator) ([]session.Event, error)) tea.Cmd {
	return func() tea.Msg {
		events, err := fn(context.Background(), g.orch)
		return eventsMsg{events: events, err: err}
	}
}

// slashCommand is a parsed console command such as "/roll Athletics".
type slashCommand struct {
	name string
	arg  string
}

func parseSlash(input string) slashCommand {
	input = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), "/"))
	name, arg, _ := strings.Cut(input, " ")
	return slashCommand{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}
}

// parseNameArgs splits "Parkour | acrobatics, agility" into a skill name
// and trait tags.
func parseNameArgs(arg string) (string, []string) {
	name, rest, found := strings.Cut(arg, "|")
	name = strings.TrimSpace(name)
	if !found {
		return name, nil
	}
	var tags []string
	for _, t := range strings.Split(rest, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return name, tags
}

// dispatch maps a slash command onto an orchestrator call. A non-empty
// message is shown locally instead.
func (g *Game) dispatch(sc slashCommand) (tea.Cmd, string) {
	switch sc.name {
	case "roll":
		if sc.arg == "" {
			return nil, "Usage: /roll <skill>"
		}
		return g.action(func(ctx context.Context, o *session.Orchestrator) ([]session.Event, error) {
			return o.Roll(ctx, sc.arg)
		}), ""
	case "reroll", "resolve":
		accept := sc.name == "reroll"
		return g.action(func(ctx context.Context, o *session.Orchestrator) ([]session.Event, error) {
			return o.ResolveReroll(ctx, accept)
		}), ""
	case "accept", "decline":
		accept := sc.name == "accept"
		return g.action(func(ctx context.Context, o *session.Orchestrator) ([]session.Event, error) {
			return o.ResolveLoot(ctx, accept)
		}), ""
	case "name":
		name, tags := parseNameArgs(sc.arg)
		return g.action(func(ctx context.Context, o *session.Orchestrator) ([]session.Event, error) {
			return o.ResolveDecision(ctx, name, tags)
		}), ""
	case "cancel":
		return g.action(func(ctx context.Context, o *session.Orchestrator) ([]session.Event, error) {
			return o.CancelDecision(ctx)
		}), ""
	case "levelup":
		if sc.arg == "" {
			return nil, "Usage: /levelup <skill>"
		}
		return g.action(func(ctx context.Context, o *session.Orchestrator) ([]session.Event, error) {
			return o.LevelUp(ctx, sc.arg)
		}), ""
	case "specialize":
		skill, spec, _ := strings.Cut(sc.arg, "|")
		skill, spec = strings.TrimSpace(skill), strings.TrimSpace(spec)
		if skill == "" {
			return nil, "Usage: /specialize <skill> [| name]"
		}
		return g.action(func(ctx context.Context, o *session.Orchestrator) ([]session.Event, error) {
			return o.Specialize(ctx, skill, spec)
		}), ""
	case "buyluck":
		return g.action(func(ctx context.Context, o *session.Orchestrator) ([]session.Event, error) {
			return o.BuyLuck(ctx)
		}), ""
	default:
		return nil, fmt.Sprintf("Unknown command: /%s (try /help)", sc.name)
	}
}
