// Package ui provides terminal output for the layoffscrub CLI: colored
// status lines, error rendering with suggestions, progress spinners and
// interactive prompts. Color is disabled when stdout is not a terminal so
// piped output stays clean.
package ui

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"

	"layoffscrub/pkg/errors"
)

var (
	// Check if output supports colors
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	// Color functions
	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")
)

// colorFunc returns a function that colors text if supported
func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// ShowHeader displays a formatted header
func ShowHeader(title string) {
	width := 50
	if len(title)+2 > width {
		width = len(title) + 4
	}
	padding := (width - len(title) - 2) / 2

	fmt.Println("\n+" + strings.Repeat("-", width-2) + "+")
	fmt.Printf("|%s%s%s|\n",
		strings.Repeat(" ", padding),
		ColorBold(title),
		strings.Repeat(" ", width-2-padding-len(title)),
	)
	fmt.Println("+" + strings.Repeat("-", width-2) + "+")
}

// ShowError displays a formatted error message. Structured errors carry
// their own code, cause and suggestions; anything else is printed as-is.
func ShowError(err error) {
	if err == nil {
		return
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		label := ColorError(fmt.Sprintf("ERROR [%s]:", appErr.Code))
		if appErr.Severity == errors.SeverityWarning {
			label = ColorWarning(fmt.Sprintf("WARNING [%s]:", appErr.Code))
		}
		fmt.Printf("\n%s %s\n", label, appErr.Message)
		if appErr.Cause != nil {
			fmt.Printf("  %s\n", ColorDim(appErr.Cause.Error()))
		}
		for _, suggestion := range appErr.Suggestions {
			fmt.Printf("  %s %s\n", ColorInfo("TIP:"), ColorInfo(suggestion))
		}
		return
	}

	fmt.Printf("\n%s %s\n", ColorError("ERROR:"), err.Error())
}

// ShowSuccess displays a success message
func ShowSuccess(message string) {
	fmt.Printf("%s %s\n", ColorSuccess("SUCCESS:"), message)
}

// ShowWarning displays a warning message
func ShowWarning(message string) {
	fmt.Printf("%s %s\n", ColorWarning("WARNING:"), ColorWarning(message))
}

// ShowInfo displays an info message
func ShowInfo(message string) {
	fmt.Printf("%s %s\n", ColorInfo("INFO:"), message)
}

// PrintSection prints a bold section title for report output
func PrintSection(title string) {
	fmt.Println()
	fmt.Println(ColorBold(title))
}

// PrintKeyValue prints an aligned key/value row under a section
func PrintKeyValue(key, value string) {
	fmt.Printf("  %s %s\n", ColorDim(fmt.Sprintf("%-24s", key+":")), value)
}

// FormatDuration formats a duration in human-readable form
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
