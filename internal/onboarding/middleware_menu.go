package onboarding

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tableagent/internal/config"
)

// MiddlewareMenu toggles middlewares and sets the token budget, one line at
// a time.
type MiddlewareMenu struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func NewMiddlewareMenu(scanner *bufio.Scanner, out io.Writer) *MiddlewareMenu {
	return &MiddlewareMenu{scanner: scanner, out: out}
}

func (m *MiddlewareMenu) readLine() (string, bool) {
	if !m.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.scanner.Text()), true
}

// Run returns the edited settings and the token budget (0 for none).
func (m *MiddlewareMenu) Run(settings []config.MiddlewareSetting) ([]config.MiddlewareSetting, int) {
	budget := 0
	for {
		fmt.Fprintln(m.out, "\nAvailable Middlewares:")
		fmt.Fprintln(m.out, strings.Repeat("-", 30))
		for i, s := range settings {
			status := "[ON] "
			if !s.Enabled {
				status = "[OFF]"
			}
			fmt.Fprintf(m.out, "%2d) %s %s\n", i+1, status, s.ID)
		}
		fmt.Fprintf(m.out, " b) Max tokens per model call: %s\n", budgetLabel(budget))
		fmt.Fprintln(m.out, " 0) Finish & Save")

		fmt.Fprint(m.out, "\nSelect a number to toggle (or 0 to finish): ")
		input, ok := m.readLine()
		if !ok || input == "0" || input == "" {
			return settings, budget
		}
		if strings.EqualFold(input, "b") {
			budget = m.askBudget()
			continue
		}

		idx, err := strconv.Atoi(input)
		if err != nil || idx < 1 || idx > len(settings) {
			fmt.Fprintln(m.out, "Invalid selection. Please try again.")
			continue
		}
		settings[idx-1].Enabled = !settings[idx-1].Enabled
	}
}

func (m *MiddlewareMenu) askBudget() int {
	fmt.Fprint(m.out, "Max tokens per model call (empty for no cap): ")
	input, _ := m.readLine()
	n, err := strconv.Atoi(input)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func budgetLabel(n int) string {
	if n <= 0 {
		return "(not set)"
	}
	return strconv.Itoa(n)
}
