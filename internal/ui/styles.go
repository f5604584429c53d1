package ui

import (
	"fmt"
	"io"

	"github.com/BioHazard786/warpcall/internal/connstate"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Color palette
var (
	Primary   = lipgloss.Color("#22d3ee") // Cyan accent
	Success   = lipgloss.Color("#10B981") // Emerald
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Error     = lipgloss.Color("#EF4444") // Red
	Muted     = lipgloss.Color("#6B7280") // Gray
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

	RoomBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(Success).
			Padding(1, 2)
)

// Table styles
var (
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Primary).
				Align(lipgloss.Center)

	tableCellStyle = lipgloss.NewStyle().Padding(0, 1)

	TableRowStyle = tableCellStyle.Foreground(lipgloss.Color("255"))

	TableRowAltStyle = tableCellStyle.Foreground(lipgloss.Color("245"))
)

const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconRoom    = "🚪"
	IconPeer    = "👤"
	IconMicOn   = "🎙️"
	IconMicOff  = "🔇"
	IconCamOn   = "📷"
	IconCamOff  = "🚫"
	IconCopy    = "📋"
	IconLink    = "🔗"
	IconCall    = "📞"
)

// StatusStyle colors a presented connection status.
func StatusStyle(s connstate.Status) lipgloss.Style {
	switch s {
	case connstate.Connected:
		return SuccessStyle
	case connstate.Connecting:
		return WarningStyle
	case connstate.Failed:
		return ErrorStyle
	}
	return MutedStyle
}

func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})
}

// RoomInfoView is the box shown after `warpcall new` picks a room.
func RoomInfoView(roomID, link string) string {
	content := fmt.Sprintf("%s Room Ready!\n\n%s Room ID:    %s\n%s Join with:  %s",
		IconCall,
		IconCopy, BoldStyle.Foreground(Primary).Render(roomID),
		IconLink, MutedStyle.Render("warpcall join "+link),
	)
	return RoomBoxStyle.Render(content)
}

func PrintError(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintWarning(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", WarningStyle.Render(IconWarning), WarningStyle.Render(msg))
}

func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render(IconSuccess), msg)
}

func PrintInfo(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", IconInfo, msg)
}
