package main

import (
	"fmt"
	"io"

	"github.com/Abraxas-365/coursekb/kb"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	answerStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func printSources(w io.Writer, sources []kb.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w, titleStyle.Render("Sources"))
	for _, s := range sources {
		fmt.Fprintln(w, sourceStyle.Render(fmt.Sprintf("  [%d] %s, p.%s (score %.3f)", s.Index, s.Source, s.Page, s.Score)))
	}
}

func printResult(w io.Writer, ok bool, message string) {
	if ok {
		fmt.Fprintln(w, successStyle.Render(message))
		return
	}
	fmt.Fprintln(w, errorStyle.Render(message))
}
