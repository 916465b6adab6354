package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/tabletop-session/pkg/session"
	"github.com/jwebster45206/tabletop-session/pkg/traits"
)

const (
	AgentName       = "Narrator"
	PlaceHolderText = "Type an action, a *command*, or /help..."
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	game         *Game
	transcript   []session.Event
	view         *session.View
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool

	// Campaign selection state
	showCampaignModal bool
	choices           []campaignChoice
	selectedChoice    int
	loadingCampaigns  bool

	// Quit confirmation state
	showQuitModal bool

	// Shown while the narrator is working
	dice spinner.Model
}

const helpText = `
Commands:
• /roll <skill>               Roll the requested check
• /reroll, /resolve           Spend 1 Luck to reroll, or keep the roll
• /accept, /decline           Answer a loot offer
• /name <skill> | trait, trait Name a new skill or specialization
• /cancel                     Skip naming
• /levelup <skill>            Spend XP to level a skill
• /specialize <skill> [| name] Spend XP on a specialization
• /buyluck                    Spend XP on 1 Luck
• /copy                       Copy the last narration
• /quit                       Quit
Anything else is sent to the narrator, including *commands* such as
*addwound*, *addxp 2*, *buyluck*, *summary*, *togglerolling*,
*promptadditem* and *ooc- question*.
`

func NewConsoleUI(game *Game) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		game:              game,
		dice:              spinner.New(spinner.WithSpinner(diceSpinner), spinner.WithStyle(rollStyle)),
		textarea:          ta,
		chatViewport:      chatVp,
		metaViewport:      metaVp,
		showCampaignModal: true,
		loadingCampaigns:  true,
	}
}

// writeSheet renders the character panel.
func writeSheet(v *session.View) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("CHARACTER") + "\n\n")
	if v == nil {
		content.WriteString("Loading...\n")
		return content.String()
	}

	pc := v.PC
	content.WriteString(pc.Name + "\n")
	content.WriteString(fmt.Sprintf("Wounds %d  Luck %d  XP %d\n\n", pc.Wounds, pc.Luck, pc.XP))

	if len(pc.Statuses) > 0 {
		content.WriteString("Statuses:\n")
		for _, s := range pc.Statuses {
			content.WriteString("• " + s + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString("Skills:\n")
	for _, s := range pc.Skills {
		content.WriteString(fmt.Sprintf("• %s L%d", s.Name, s.Level))
		if len(s.Traits) > 0 {
			content.WriteString(" [" + traits.Labels(s.Traits) + "]")
		}
		content.WriteString("\n")
	}

	content.WriteString("\nInventory:\n")
	if len(v.Inventory) == 0 {
		content.WriteString("Empty\n")
	}
	for _, it := range v.Inventory {
		content.WriteString(fmt.Sprintf("• %s x%d", it.Name, it.Qty))
		if len(it.Matches) > 0 {
			content.WriteString(" [" + traits.Labels(it.Matches) + "]")
		}
		content.WriteString("\n")
	}

	content.WriteString("\nState: " + string(v.State) + "\n")
	if v.RollRequest != nil {
		content.WriteString(fmt.Sprintf("Roll: %s vs %d\n", v.RollRequest.Skill, v.RollRequest.Difficulty))
	}
	if v.TestMode {
		content.WriteString("Test rolling is ON\n")
	}

	content.WriteString("\nCommands:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• /help: Help\n")
	return content.String()
}

// formatEvent renders one transcript entry for the chat panel.
func formatEvent(e session.Event, width int) string {
	switch e.Kind {
	case session.EventNarration:
		return formatNarratorResponse(e.Text, width)
	case session.EventPlayer:
		return userStyle.Render("You: ") + wordwrap.String(e.Text, width-6)
	case session.EventRoll:
		return rollStyle.Render(wordwrap.String(e.Text, width))
	case session.EventOOC:
		return promptStyle.Render("OOC: " + wordwrap.String(e.Text, width-6))
	case session.EventRerollOffer, session.EventLootOffer, session.EventDecision:
		return speakerStyle.Render(wordwrap.String(e.Text, width))
	default:
		return loadingStyle.Render(wordwrap.String(e.Text, width))
	}
}

// writeChatContent builds the chat content for the current viewport width
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding

	var content strings.Builder
	title := "TABLETOP SESSION"
	if m.view != nil {
		title = strings.ToUpper(m.view.Title)
	}
	content.WriteString(titleStyle.Render(title) + "\n\n")
	content.WriteString("Describe what you do. Roll when the narrator asks.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(chatWidth-6, 1))) + "\n\n")

	for _, e := range m.transcript {
		content.WriteString(formatEvent(e, chatWidth) + "\n\n")
	}

	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
	}

	if m.loading {
		content.WriteString(m.dice.View() + loadingStyle.Render(" the dice are talking..."))
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m *ConsoleUI) refreshSheet() {
	if m.game.orch == nil {
		return
	}
	if v, err := m.game.orch.Snapshot(); err == nil {
		m.view = v
	}
	m.metaViewport.SetContent(writeSheet(m.view))
}

func (m *ConsoleUI) resize() {
	chatWidth := int(float64(m.width)*0.70) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

func (m *ConsoleUI) local(text string) {
	m.transcript = append(m.transcript, session.Event{Kind: session.EventSystem, Text: text})
	m.writeChatContent()
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.game.loadCampaigns()
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showCampaignModal {
		return m.updateCampaignModal(msg)
	}

	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.writeChatContent()
		m.metaViewport.SetContent(writeSheet(m.view))

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}

			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			m.err = nil

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			m.loading = true
			m.writeChatContent()
			return m, tea.Batch(m.game.action(func(ctx context.Context, o *session.Orchestrator) ([]session.Event, error) {
				return o.SubmitInput(ctx, input)
			}), m.dice.Tick)
		}

	case eventsMsg:
		m.loading = false
		m.transcript = append(m.transcript, msg.events...)
		// Refusals already carry a notice; only show errors that did not.
		if msg.err != nil && len(msg.events) == 0 {
			m.err = msg.err
		}
		m.writeChatContent()
		m.refreshSheet()
		return m, nil

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.dice, cmd = m.dice.Update(msg)
			m.writeChatContent()
			return m, cmd
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func formatNarratorResponse(response string, width int) string {
	wrapWidth := width - len(AgentName+": ")
	if wrapWidth < 10 {
		wrapWidth = 10
	}
	return narratorStyle.Render(AgentName+": ") + wordwrap.String(response, wrapWidth)
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	sc := parseSlash(input)

	switch sc.name {
	case "help":
		m.transcript = append(m.transcript, session.Event{Kind: session.EventSystem, Text: titleStyle.Render("Help:") + helpText})
		m.writeChatContent()
		return m, nil
	case "quit", "exit":
		m.showQuitModal = true
		return m, nil
	case "copy":
		text := lastNarration(m.transcript)
		if text == "" {
			m.local("Nothing to copy yet.")
			return m, nil
		}
		if err := clipboard.WriteAll(text); err != nil {
			m.local("Copy failed: " + err.Error())
			return m, nil
		}
		m.local("Copied the last narration to the clipboard.")
		return m, nil
	}

	cmd, message := m.game.dispatch(sc)
	if message != "" {
		m.local(message)
		return m, nil
	}
	m.loading = true
	m.writeChatContent()
	return m, tea.Batch(cmd, m.dice.Tick)
}

func lastNarration(events []session.Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == session.EventNarration {
			return events[i].Text
		}
	}
	return ""
}

func (m ConsoleUI) updateCampaignModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case campaignsLoadedMsg:
		m.loadingCampaigns = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.choices = msg.choices
		}

	case sessionStartedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.transcript = append(append(m.transcript, msg.history...), msg.events...)
		m.showCampaignModal = false
		if m.width > 0 && m.height > 0 {
			m.resize()
		}
		m.refreshSheet()
		m.writeChatContent()
		m.textarea.Focus()
		m.ready = true
		return m, textarea.Blink

	case tea.KeyMsg:
		if m.loadingCampaigns || m.loading {
			if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.selectedChoice > 0 {
				m.selectedChoice--
			}
		case tea.KeyDown:
			if m.selectedChoice < len(m.choices)-1 {
				m.selectedChoice++
			}
		case tea.KeyEnter:
			if m.err == nil && len(m.choices) > 0 {
				m.loading = true
				return m, m.game.start(m.choices[m.selectedChoice])
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Session?"))
	content.WriteString("\n\n")
	content.WriteString("Your campaign is saved as you play.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderCampaignModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingCampaigns:
		content.WriteString(modalTitleStyle.Render("Loading Campaigns..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Please wait..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(m.err.Error()))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	case m.loading:
		content.WriteString(modalTitleStyle.Render("Starting Session..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Setting up your adventure..."))
	default:
		content.WriteString(modalTitleStyle.Render("Select a Campaign"))
		content.WriteString("\n\n")

		for i, c := range m.choices {
			if i == m.selectedChoice {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", c.Label)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", c.Label)))
			}
			content.WriteString("\n")
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showCampaignModal {
		return m.renderCampaignModal()
	}

	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.70) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}
