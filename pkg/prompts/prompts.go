package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jwebster45206/tabletop-session/pkg/campaign"
	"github.com/jwebster45206/tabletop-session/pkg/chat"
	"github.com/jwebster45206/tabletop-session/pkg/traits"
)

// GameMasterSystemPrompt is the system prompt for ordinary turns. It defines
// the two-part reply contract the directive parser expects.
const GameMasterSystemPrompt = `You are the game master of a solo tabletop roleplaying session. You describe the world, voice every NPC and decide when the player character must roll. You never speak or act for the player character.

### Input
Each message is a JSON object with these fields:
- campaign_card: title, theme, setting, premise and the player character's description. Stay inside THIS setting.
- state_summary: the character sheet. Skills are "Name L<level> [Traits]". Inventory is "Name x<qty> [Traits]".
- story_summary: a recap of earlier play. Treat it as canon.
- recent_turns: the latest lines of play, oldest first.
- mechanics.roll_result: present when the player has just rolled. Narrate the consequences of its tier (fail, success, crit).
- mechanics.rules: dice per level, crit margin and difficulty scale.
- hints.want_loot: the player asked for loot. Propose exactly one item.
- hints.ooc_only or meta.suppressNarrative: reply with the first line only.
- player_input: what the player does or says.

### Reply format
Line 1 is a single JSON object on ONE line holding the OOC directive:
{"ooc":{"need_roll":false,"skill":"","dieTier":0,"difficulty":0,"note":"","prompt":"","inventory_proposal":{"add":[]}}}
- need_roll: true only when the action is risky and the outcome uncertain.
- skill: the character's best matching skill name, or "Do Anything" when nothing fits.
- difficulty: the DC from the difficulty scale.
- prompt: one short out-of-character sentence telling the player what to roll and why.
- inventory_proposal.add: at most 3 items, each {"name","qty","matches","why"}. matches uses only the allowed trait vocabulary.
Line 2 is blank.
Line 3 starts with "NARRATIVE:" followed by 1 to 3 short paragraphs of story.

### Rules
- Never resolve a roll yourself. When need_roll is true, stop the narrative at the moment of uncertainty.
- Never invent items in the player's possession. Only inventory_proposal grants items.
- Do not break the fourth wall inside NARRATIVE.
`

// UtilitySystemPrompt is used for bookkeeping requests that return plain
// text or strict JSON instead of a directive.
const UtilitySystemPrompt = `You are a careful assistant for a tabletop roleplaying session. Follow the instructions in player_input exactly and reply with nothing else.`

// Player input templates for turn requests.
const (
	KickoffInput    = "Use the campaign_card below and begin the adventure in THIS setting."
	GroundingSuffix = "\n\n(Use only the provided campaign_card and state_summary.)"
)

// PlayerInput appends the grounding reminder to free text.
func PlayerInput(text string) string {
	return text + GroundingSuffix
}

// ResolveInput asks the narrator to continue from a finished roll.
func ResolveInput(rerolled bool) string {
	if rerolled {
		return "Resolve the action (after luck reroll)."
	}
	return "Resolve the action."
}

// OOCOnlyInput asks for a directive line only, using the player's text as
// the OOC prompt.
func OOCOnlyInput(text string) string {
	return strings.Join([]string{
		"Respond ONLY with the first-line OOC JSON.",
		"Set need_roll=false unless a roll is truly required.",
		"Use this OOC prompt text: " + text,
		"Do NOT include NARRATIVE.",
	}, "\n")
}

// LootRequestInput asks for exactly one item proposal and no narrative.
func LootRequestInput() string {
	return strings.Join([]string{
		"Propose EXACTLY 1 item using inventory_proposal.add.",
		"Include fields: name, qty (1), matches (1–2 from the allowed list), and a short 'why'.",
		"Use the OOC 'prompt' to ask the player if they want it.",
		"Do NOT auto-add items; no 'inventory' block—proposal only.",
		"Return ONLY the first-line OOC JSON; omit NARRATIVE.",
		"",
		"Allowed traits:",
		strings.Join(traits.Vocabulary, ", "),
	}, "\n")
}

// ScribePrompt builds the rolling summary instruction from the existing
// summary and recent lines.
func ScribePrompt(existing string, lines []chat.Line) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		existing = "(none)"
	}
	parts := []string{
		"You are the campaign scribe. Produce an objective recap of the story so far.",
		"Keep 120–200 words. No spoilers for hidden info. Include named NPCs, locations, goals, and open threads.",
		"",
		"Existing summary (may be empty):",
		existing,
		"",
		"Recent log (role: text):",
	}
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("- %s: %s", l.Role, l.Text))
	}
	return strings.Join(parts, "\n")
}

// StarterKitPrompt asks for three skills and three items that fit the card.
func StarterKitPrompt(card campaign.Card) string {
	cardJSON, err := json.Marshal(card)
	if err != nil {
		cardJSON = []byte("{}")
	}
	return strings.Join([]string{
		"Return STRICT JSON only. No OOC, no code fences, no narrative.",
		"",
		"Create EXACTLY 3 starter skills and EXACTLY 3 starter items for the PC below.",
		"Constraints:",
		"- traits must be selected ONLY from this allowed list:",
		strings.Join(traits.Vocabulary, ", "),
		"- skills: { name: string, level: 1, traits: array of 1–2 entries from the allowed list }",
		"- items:  { name: string, qty: positive integer, matches: array of 1–2 entries from the allowed list }",
		"- names should be concise and fiction-friendly (no colons).",
		"- items should correlate to the skills' traits where sensible.",
		"",
		`Response schema (no extra fields): {"skills":[{"name":"","level":1,"traits":[""]}],"items":[{"name":"","qty":1,"matches":[""]}]}`,
		"",
		"campaign_card:",
		string(cardJSON),
	}, "\n")
}
