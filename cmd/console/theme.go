package main

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// Palette for the session console: parchment text on a dark table.
const (
	colorInk       = lipgloss.Color("230") // parchment
	colorGold      = lipgloss.Color("178")
	colorBlood     = lipgloss.Color("160")
	colorMoss      = lipgloss.Color("108")
	colorSky       = lipgloss.Color("74")
	colorEmber     = lipgloss.Color("208")
	colorFaded     = lipgloss.Color("243")
	colorTable     = lipgloss.Color("234")
	colorFelt      = lipgloss.Color("29")
	colorHighlight = lipgloss.Color("16")
)

// diceSpinner tumbles a d6 while the narrator works.
var diceSpinner = spinner.Spinner{
	Frames: []string{"⚀", "⚁", "⚂", "⚃", "⚄", "⚅"},
	FPS:    time.Second / 8,
}

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

var (
	chatPanelStyle = lipgloss.NewStyle().Padding(2, 0, 1, 3)
	metaPanelStyle = lipgloss.NewStyle().Padding(2, 2, 0, 0)

	titleStyle     = fg(colorGold).Bold(true).Underline(true)
	speakerStyle   = fg(colorSky).Bold(true)
	narratorStyle  = fg(colorMoss).Bold(true)
	userStyle      = fg(colorInk).Bold(true)
	rollStyle      = fg(colorGold).Bold(true)
	errorStyle     = fg(colorBlood)
	loadingStyle   = fg(colorEmber).Italic(true)
	promptStyle    = fg(colorFaded)
	separatorStyle = fg(colorFelt)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorGold).
			Background(colorTable).
			Foreground(colorInk).
			Padding(1, 3)
	modalTitleStyle        = fg(colorGold).Bold(true).Align(lipgloss.Center)
	modalItemStyle         = fg(colorInk)
	modalSelectedItemStyle = lipgloss.NewStyle().Foreground(colorHighlight).Background(colorGold).Bold(true)
)
