package main

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/tabletop-session/internal/config"
	"github.com/jwebster45206/tabletop-session/internal/logger"
	"github.com/jwebster45206/tabletop-session/internal/services"
	"github.com/jwebster45206/tabletop-session/internal/storage"
	"github.com/jwebster45206/tabletop-session/pkg/rules"
	"github.com/jwebster45206/tabletop-session/pkg/session"
)

// ConsoleConfig holds settings that only the terminal client uses.
type ConsoleConfig struct {
	CampaignTitle string `env:"CONSOLE_CAMPAIGN_TITLE" envDefault:"Untitled Campaign"`
	PCName        string `env:"CONSOLE_PC_NAME" envDefault:"Wanderer"`
	LogFile       string `env:"CONSOLE_LOG_FILE" envDefault:"console.log"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	consoleCfg := &ConsoleConfig{}
	if err := env.Parse(consoleCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load console config: %v\n", err)
		os.Exit(1)
	}

	// The TUI owns stdout, so logs go to a file.
	logFile, err := os.OpenFile(consoleCfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logFile.Close() // Ignore error in defer
	}()
	log := logger.New(logFile, cfg)

	narrator, err := services.NewNarrativeServiceFromConfig(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure narrative service: %v\n", err)
		os.Exit(1)
	}

	ruleSet := rules.Default()
	if cfg.RulesPath != "" {
		if ruleSet, err = rules.Load(cfg.RulesPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load rules: %v\n", err)
			os.Exit(1)
		}
	}

	store, _, err := storage.Open(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close() // Ignore error in defer
	}()

	game := &Game{
		store:   store,
		console: consoleCfg,
		sessionCfg: session.Config{
			Storage:       store,
			Narrator:      narrator,
			Rules:         ruleSet,
			Logger:        log,
			HistoryWindow: cfg.HistoryWindow,
			SummaryEvery:  cfg.SummaryEvery,
		},
	}

	p := tea.NewProgram(NewConsoleUI(game),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
