package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#2E86DE")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E74C3C")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#27AE60")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F39C12")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00BFFF"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7F8C8D"))
)

// Out is where the message helpers write. Tests replace it.
var Out io.Writer = os.Stdout

// In is where prompts read answers from.
var In io.Reader = os.Stdin

// PromptYesNo asks a yes/no question and returns the answer, or defaultYes
// on an empty answer or a read error.
func PromptYesNo(message string, defaultYes bool) bool {
	choices := "y/N"
	if defaultYes {
		choices = "Y/n"
	}
	fmt.Fprint(Out, promptStyle.Render(fmt.Sprintf("%s [%s]: ", message, choices)))

	answer, err := bufio.NewReader(In).ReadString('\n')
	if err != nil && answer == "" {
		return defaultYes
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "" {
		return defaultYes
	}
	return answer == "y" || answer == "yes"
}

// Error prints an error message
func Error(message string) {
	fmt.Fprintln(Out, errorStyle.Render("✗ "+message))
}

// Success prints a success message
func Success(message string) {
	fmt.Fprintln(Out, successStyle.Render("✓ "+message))
}

// Warning prints a warning message
func Warning(message string) {
	fmt.Fprintln(Out, warningStyle.Render("⚠ "+message))
}

// Info prints an info message
func Info(message string) {
	fmt.Fprintln(Out, infoStyle.Render("ℹ "+message))
}

// Header prints a styled header
func Header(message string) {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#2E86DE")).
		Padding(0, 1)
	fmt.Fprintln(Out, style.Render(message))
}

// Divider prints a divider line
func Divider() {
	fmt.Fprintln(Out, mutedStyle.Render(strings.Repeat("─", 60)))
}
