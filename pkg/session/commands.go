package session

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jwebster45206/tabletop-session/pkg/chat"
	"github.com/jwebster45206/tabletop-session/pkg/prompts"
	"github.com/jwebster45206/tabletop-session/pkg/rules"
)

var (
	oocCommand    = regexp.MustCompile(`(?i)^\*ooc-\s*(.+)\*$`)
	statusCommand = regexp.MustCompile(`(?i)^\*(addstatus|removestatus)\s+(.+)\*$`)
	starCommand   = regexp.MustCompile(`^\*(\w+)(?:\s+(-?\d+))?\*$`)
)

// command is a parsed *star* command.
type command struct {
	name   string
	arg    string
	amount int
	hasAmt bool
}

// parseCommand recognizes *name*, *name n*, *addstatus text*,
// *removestatus text* and *ooc- text*.
func parseCommand(text string) (command, bool) {
	if m := oocCommand.FindStringSubmatch(text); m != nil {
		return command{name: "ooc", arg: strings.TrimSpace(m[1])}, true
	}
	if m := statusCommand.FindStringSubmatch(text); m != nil {
		return command{name: strings.ToLower(m[1]), arg: strings.TrimSpace(m[2])}, true
	}
	if m := starCommand.FindStringSubmatch(text); m != nil {
		cmd := command{name: strings.ToLower(m[1])}
		if m[2] != "" {
			if n, err := strconv.Atoi(m[2]); err == nil {
				cmd.amount, cmd.hasAmt = n, true
			}
		}
		return cmd, true
	}
	return command{}, false
}

// narrativeCommand reports whether cmd calls the narrator.
func narrativeCommand(name string) bool {
	return name == "ooc" || name == "promptadditem"
}

func (o *Orchestrator) runCommand(ctx context.Context, cmd command) ([]Event, error) {
	return o.run(ctx, narrativeCommand(cmd.name), func(t *turn) error {
		return o.applyCommand(t, cmd)
	})
}

func (o *Orchestrator) applyCommand(t *turn, cmd command) error {
	pc := &o.campaign.PC
	levels := o.rules.Wounds.Levels

	switch cmd.name {
	case "addluck":
		pc.AdjustLuck(1)
		t.system(fmt.Sprintf("Luck +1 → %d", pc.Luck))
	case "removeluck":
		pc.AdjustLuck(-1)
		t.system(fmt.Sprintf("Luck -1 → %d", pc.Luck))
	case "addwound":
		pc.AdjustWounds(1, levels)
		t.system(fmt.Sprintf("Wound +1 → %d/%d", pc.Wounds, levels))
	case "removewound":
		pc.AdjustWounds(-1, levels)
		t.system(fmt.Sprintf("Wound -1 → %d/%d", pc.Wounds, levels))
	case "addxp":
		n := 1
		if cmd.hasAmt {
			n = cmd.amount
		}
		pc.AdjustXP(n)
		t.system(fmt.Sprintf("XP %+d → %d", n, pc.XP))
	case "addstatus":
		if pc.AddStatus(cmd.arg) {
			t.system("Status added: " + cmd.arg)
		} else {
			t.system("Status already present: " + cmd.arg)
			return nil
		}
	case "removestatus":
		if pc.RemoveStatus(cmd.arg) {
			t.system("Status removed: " + cmd.arg)
		} else {
			t.system("Status not found: " + cmd.arg)
			return nil
		}
	case "newsession":
		pc.Luck = o.rules.Luck.Start
		t.system(fmt.Sprintf("New session: Luck reset to %d.", pc.Luck))
	case "buyluck":
		return o.buyLuck(t)
	case "togglerolling":
		o.testMode = !o.testMode
		if o.testMode {
			t.system(fmt.Sprintf("Test rolling: ON — tap any Skill name to roll vs DC %d. (No narration in test mode.)", rules.TestDifficulty))
		} else {
			t.system("Test rolling: OFF")
		}
		return nil
	case "summary":
		t.record(chat.RolePlayer, "(requested summary)", nil)
		summary := strings.TrimSpace(o.campaign.StorySummary)
		if summary == "" {
			summary = "(no summary yet)"
		}
		t.notice(summary)
		return nil
	case "promptadditem":
		t.system("Requesting loot proposal…")
		o.narrate(t, prompts.New().
			WithHistoryLimit(commandWindow).
			WithPlayerInput(prompts.LootRequestInput()).
			WithSuppressNarrative().
			WithHints(true, true).
			WithTraitVocabulary())
		return nil
	case "ooc":
		t.record(chat.RolePlayer, "(OOC) "+cmd.arg, nil)
		o.narrate(t, prompts.New().
			WithHistoryLimit(commandWindow).
			WithPlayerInput(prompts.OOCOnlyInput(cmd.arg)).
			WithSuppressNarrative().
			WithHints(false, true))
		return nil
	default:
		t.system("Unknown command: " + cmd.name)
		return nil
	}

	o.save(t)
	return nil
}
