package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/ozzaii/beatflow/internal/resolver"
	"github.com/ozzaii/beatflow/pkg/patterns"
)

// FormatTable writes patterns as a table with columns ID, NAME, KIT, MODIFIED
// and PATTERN (truncated). Returns the number of patterns formatted.
func FormatTable(w io.Writer, c patterns.Collection, namespace string, now time.Time) int {
	if len(c) == 0 {
		fmt.Fprintf(w, "No patterns found in namespace '%s'\n", namespace)
		return 0
	}

	fmt.Fprintf(w, "Patterns in namespace '%s':\n\n", namespace)

	fmt.Fprintf(w, "%-10s %-20s %-6s %-9s %s\n", "ID", "NAME", "KIT", "MODIFIED", "PATTERN")
	fmt.Fprintf(w, "%-10s %-20s %-6s %-9s %s\n",
		"----------", "--------------------", "------", "---------", "----------------------------------------")

	for i := range c {
		p := &c[i]
		fmt.Fprintf(w, "%-10s %-20s %-6s %-9s %s\n",
			resolver.ShortID(p.ID),
			truncate(p.Name, 20),
			formatKit(p.Kit),
			formatAge(p.Modified, now),
			formatPayload(p.Pattern),
		)
	}

	noun := "pattern"
	if len(c) != 1 {
		noun = "patterns"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(c), noun)

	return len(c)
}

// FormatJSONL writes one compact JSON object per line, for piping into jq.
func FormatJSONL(w io.Writer, c patterns.Collection) error {
	for i := range c {
		data, err := json.Marshal(&c[i])
		if err != nil {
			return fmt.Errorf("failed to marshal pattern to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatJSON writes the collection as one indented JSON array, the same shape
// the slot persists.
func FormatJSON(w io.Writer, c patterns.Collection) error {
	if c == nil {
		c = patterns.Collection{}
	}
	return writeIndented(w, c)
}

// FormatSingleJSON writes one pattern as indented JSON.
func FormatSingleJSON(w io.Writer, p *patterns.Pattern) error {
	return writeIndented(w, p)
}

// FormatDraftJSON writes an imported, not yet stored pattern as indented JSON.
func FormatDraftJSON(w io.Writer, d *patterns.Draft) error {
	return writeIndented(w, d)
}

func writeIndented(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

// formatKit marks kits outside the known catalogue with a trailing '?'.
func formatKit(kit string) string {
	if patterns.IsKnownKit(kit) {
		return kit
	}
	return truncate(kit, 5) + "?"
}

// formatPayload shows the compact pattern JSON, at most 40 characters.
func formatPayload(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "-"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "(malformed)"
	}
	return truncate(buf.String(), 40)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}

// formatAge renders t relative to now, e.g. "2m ago".
func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := now.Sub(t)
	switch {
	case diff < 0:
		return "just now"
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
