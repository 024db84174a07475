package printer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/ozzaii/beatflow/pkg/patterns"
)

func init() {
	// Users can disable with NO_COLOR
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Printer writes user-facing CLI output. Results go to Out, diagnostics to Err.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// New returns a Printer over the given streams.
func New(out, errOut io.Writer) *Printer {
	return &Printer{Out: out, Err: errOut}
}

// Success prints a green message with a checkmark prefix
func (p *Printer) Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(p.Out, msg)
}

// Info prints an uncoloured message
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintf(p.Out, format, a...)
}

// Warning prints a yellow message to Err
func (p *Printer) Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprint(p.Err, msg)
}

// Step prints a step of a multi-step operation
func (p *Printer) Step(format string, a ...any) {
	cyan.Fprintf(p.Out, "→ %s", fmt.Sprintf(format, a...))
}

// Error prints a title, explanation and suggestions to Err and returns an
// error carrying only the title, for Cobra (SilenceErrors is set).
func (p *Printer) Error(title string, explanation string, suggestions []string) error {
	return p.ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error plus key/value details, printed in key order.
func (p *Printer) ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(p.Err, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(p.Err, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(p.Err, "\n")
		for _, k := range keys {
			fmt.Fprintf(p.Err, "  %s: %s\n", k, context[k])
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(p.Err, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(p.Err, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(p.Err, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(p.Err, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	return fmt.Errorf("%s", title)
}

// PatternError renders a failed pattern operation according to its error kind.
// Errors that are not *patterns.Error are printed as-is.
func (p *Printer) PatternError(err error) error {
	var perr *patterns.Error
	if !errors.As(err, &perr) {
		return p.Error("Error: "+err.Error(), "", nil)
	}

	details := map[string]string{}
	if perr.Op != "" {
		details["Operation"] = perr.Op
	}
	if perr.ID != "" {
		details["Pattern"] = perr.ID
	}
	cause := ""
	if perr.Err != nil {
		cause = perr.Err.Error()
	}

	switch perr.Kind {
	case patterns.KindNotFound:
		return p.ErrorWithContext("pattern not found", "No stored pattern has this id.", details,
			[]string{"Run 'beatflow list' to see stored patterns"})
	case patterns.KindValidation:
		return p.ErrorWithContext("invalid pattern", cause, details, []string{
			"Pattern documents need a non-null \"pattern\" value and a non-empty \"kit\" string",
		})
	case patterns.KindParse:
		return p.ErrorWithContext("malformed pattern data", cause, details, []string{
			"Check the file is well-formed JSON",
			"If the stored collection is damaged, set storage.strict_reads: false to read it as empty",
		})
	default:
		return p.ErrorWithContext("storage unavailable", cause, details, []string{
			"Check the storage section of beatflow.yml",
			"Remove unused patterns if the collection has outgrown storage.max_bytes",
		})
	}
}
