package ui

import (
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/session"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#cccccc")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(lipgloss.Color("#444444")).
			PaddingRight(1)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// connectionStyle colors the status indicator by reachability
func connectionStyle(state session.ConnectionState) lipgloss.Style {
	switch state {
	case session.ConnectionConnected:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	case session.ConnectionDisconnected:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	}
}
