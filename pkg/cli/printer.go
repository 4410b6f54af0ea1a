// Package cli renders a prompt's answer in the terminal.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/term"

	"github.com/docker/angi/pkg/chunk"
	"github.com/docker/angi/pkg/dispatch"
	"github.com/docker/angi/pkg/input"
)

// ConfirmationResult represents the result of a user confirmation prompt
type ConfirmationResult string

const (
	ConfirmationApprove    ConfirmationResult = "approve"
	ConfirmationApproveAll ConfirmationResult = "approve_all"
	ConfirmationReject     ConfirmationResult = "reject"
	ConfirmationAbort      ConfirmationResult = "abort"
)

var (
	bold   = color.New(color.Bold).SprintfFunc()
	yellow = color.New(color.FgYellow).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
)

type Printer struct {
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out: out,
	}
}

func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

func (p *Printer) Print(a ...any) {
	fmt.Fprint(p.out, a...)
}

func (p *Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}

// PrintText prints a streamed text fragment as is.
func (p *Printer) PrintText(text string) {
	p.Print(text)
}

// PrintAction prints an action about to be dispatched.
func (p *Printer) PrintAction(a chunk.Action) {
	p.Printf("\n%s %s%s\n", yellow("→"), bold("%s.%s", a.ComponentID, a.ActionName), formatParams(a.Params))
}

// PrintReport prints an action that was dropped or failed.
func (p *Printer) PrintReport(r dispatch.Report) {
	p.Printf("%s %s\n", yellow("⚠️"), r.Error())
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) {
	p.Printf("%s %s\n", red("❌"), err)
}

// ConfirmAction asks whether an action may run. Without a terminal on
// stdout the action is rejected.
func (p *Printer) ConfirmAction(ctx context.Context, a chunk.Action, rd io.Reader) ConfirmationResult {
	p.Printf("\n%s\n", bold("🛠️ The assistant wants to run an action 🛠️"))
	p.PrintAction(a)
	p.Printf("%s", bold("Run it? ([y]es/[a]ll/[n]o): "))

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		p.Println()
		return ConfirmationReject
	}

	// Try single-character input from stdin in raw mode (no Enter required)
	fd := int(os.Stdin.Fd())
	if oldState, err := term.MakeRaw(fd); err == nil {
		defer func() {
			if err := term.Restore(fd, oldState); err != nil {
				p.Printf("\nFailed to restore terminal state: %v\n", err)
			}
			p.Println()
		}()
		buf := make([]byte, 1)
		for {
			if _, err := os.Stdin.Read(buf); err != nil {
				return ConfirmationReject
			}
			if result, ok := parseConfirmation(string(buf)); ok {
				p.Print(bold(confirmationLabel(result)))
				return result
			}
		}
	}

	// Fallback: line-based reading (requires Enter)
	text, err := input.ReadLine(ctx, rd)
	if err != nil {
		return ConfirmationAbort
	}
	if result, ok := parseConfirmation(strings.TrimSpace(text)); ok {
		return result
	}
	return ConfirmationReject
}

func parseConfirmation(s string) (ConfirmationResult, bool) {
	switch strings.ToLower(s) {
	case "y", "yes":
		return ConfirmationApprove, true
	case "a", "all":
		return ConfirmationApproveAll, true
	case "n", "no":
		return ConfirmationReject, true
	case "\x03": // Ctrl+C
		return ConfirmationAbort, true
	}
	return "", false
}

func confirmationLabel(r ConfirmationResult) string {
	switch r {
	case ConfirmationApprove:
		return "Yes 👍"
	case ConfirmationApproveAll:
		return "Yes to all 👍"
	case ConfirmationReject:
		return "No 👎"
	default:
		return ""
	}
}

// formatParams renders action parameters as (key: value, ...), one per line
// when there is more than one.
func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return "()"
	}

	buf, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("(%v)", params)
	}

	// encoding/json sorts map keys, the ordered map keeps that order.
	kv := orderedmap.New[string, any]()
	if err := json.Unmarshal(buf, &kv); err != nil {
		return fmt.Sprintf("(%s)", buf)
	}

	var (
		parts     []string
		multiline bool
	)
	for key, value := range kv.FromOldest() {
		formatted := formatJSONValue(key, value)
		parts = append(parts, formatted)
		multiline = multiline || strings.Contains(formatted, "\n")
	}

	if len(parts) == 1 && !multiline {
		return fmt.Sprintf("(%s)", parts[0])
	}
	return fmt.Sprintf("(\n  %s\n)", strings.Join(parts, "\n  "))
}

func formatJSONValue(key string, value any) string {
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("%s: %q", bold(key), v)

	case []any:
		if len(v) == 0 {
			return fmt.Sprintf("%s: []", bold(key))
		}
		// Single item arrays are rendered on a single line
		if len(v) == 1 {
			jsonBytes, _ := json.Marshal(v)
			return fmt.Sprintf("%s: %s", bold(key), string(jsonBytes))
		}
		jsonBytes, _ := json.MarshalIndent(v, "", "  ")
		return fmt.Sprintf("%s: %s", bold(key), string(jsonBytes))

	default:
		jsonBytes, _ := json.Marshal(v)
		return fmt.Sprintf("%s: %s", bold(key), string(jsonBytes))
	}
}
