package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // primary
	colorGreen  = lipgloss.Color("35")  // success, cache hits
	colorYellow = lipgloss.Color("220") // warnings
	colorRed    = lipgloss.Color("167") // errors
	colorBlue   = lipgloss.Color("75")  // links, commands
	colorWhite  = lipgloss.Color("255") // values
	colorGray   = lipgloss.Color("245") // labels
	colorDim    = lipgloss.Color("240") // muted
)

var (
	// StyleTitle is used for headings such as the editor banner.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleLink is used for URLs of refined variants.
	StyleLink = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)

	// StyleDim is used for secondary text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	styleValue       = lipgloss.NewStyle().Foreground(colorWhite)
	styleLabel       = lipgloss.NewStyle().Foreground(colorGray).Width(12)
	styleCommand     = lipgloss.NewStyle().Foreground(colorBlue)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
)

// =============================================================================
// Status lines
// =============================================================================

const (
	iconCached = "cached"
	iconFresh  = "fresh"
)

// statusKind selects the icon and color of a status line.
type statusKind int

const (
	statusSuccess statusKind = iota
	statusError
	statusWarning
	statusInfo
)

var statusIcons = [...]struct {
	icon  string
	style lipgloss.Style
}{
	statusSuccess: {"✓", lipgloss.NewStyle().Foreground(colorGreen)},
	statusError:   {"✗", lipgloss.NewStyle().Foreground(colorRed)},
	statusWarning: {"!", lipgloss.NewStyle().Foreground(colorYellow)},
	statusInfo:    {"›", lipgloss.NewStyle().Foreground(colorGray)},
}

func statusLine(kind statusKind, msg string) string {
	s := statusIcons[kind]
	if kind == statusWarning {
		msg = s.style.Render(msg)
	}
	return s.style.Render(s.icon) + " " + msg
}

func printSuccess(format string, args ...any) {
	fmt.Println(statusLine(statusSuccess, fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Println(statusLine(statusError, fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Println(statusLine(statusWarning, fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Println(statusLine(statusInfo, fmt.Sprintf(format, args...)))
}

// printDetail prints an indented muted line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile and printLink list an artifact under the preceding status line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render("→") + " " + styleValue.Render(path))
}

func printLink(url string) {
	fmt.Println("  " + StyleDim.Render("→") + " " + StyleLink.Render(url))
}

func printKeyValue(key, value string) {
	fmt.Println(styleLabel.Render(key) + " " + styleValue.Render(value))
}

// compositeStats summarizes a composition on one line, e.g.
// "  3 elements · transparent · fresh".
func compositeStats(elements int, strategy string, skipped int, cached bool) string {
	var b strings.Builder
	b.WriteString("  ")
	sep := StyleDim.Render(" · ")
	if elements > 0 {
		b.WriteString(StyleDim.Render(fmt.Sprintf("%d elements", elements)) + sep)
	}
	if strategy != "" {
		b.WriteString(StyleDim.Render(strategy) + sep)
	}
	if skipped > 0 {
		b.WriteString(StyleDim.Render(fmt.Sprintf("%d skipped", skipped)) + sep)
	}
	if cached {
		b.WriteString(lipgloss.NewStyle().Foreground(colorGreen).Render(iconCached))
	} else {
		b.WriteString(lipgloss.NewStyle().Foreground(colorGray).Render(iconFresh))
	}
	return b.String()
}

func printCompositeStats(elements int, strategy string, skipped int, cached bool) {
	fmt.Println(compositeStats(elements, strategy, skipped, cached))
}

// printNextStep suggests a follow-up command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}
