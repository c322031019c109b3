package main

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleType = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
)

func checkMark() string {
	return styled(styleOK, "✓")
}

func crossMark() string {
	return styled(styleErr, "✗")
}

func dim(s string) string {
	return styled(styleDim, s)
}

func typeName(s string) string {
	return styled(styleType, s)
}

func styled(style lipgloss.Style, s string) string {
	if !colorEnabled() {
		return s
	}
	return style.Render(s)
}
