package tui

import (
	"github.com/Zacy-Sokach/PolyChat/internal/conversation"
	"github.com/charmbracelet/lipgloss"
)

var (
	userLabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botLabelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	systemLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	errorLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	errorTextStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	systemTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Italic(true)

	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	busyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func labelFor(role conversation.Role) string {
	switch role {
	case conversation.RoleUser:
		return userLabelStyle.Render("You:")
	case conversation.RoleBot:
		return botLabelStyle.Render("Bot:")
	case conversation.RoleError:
		return errorLabelStyle.Render("Error:")
	default:
		return systemLabelStyle.Render("System:")
	}
}

func textStyleFor(role conversation.Role) lipgloss.Style {
	switch role {
	case conversation.RoleError:
		return errorTextStyle
	case conversation.RoleSystem:
		return systemTextStyle
	default:
		return lipgloss.NewStyle()
	}
}
