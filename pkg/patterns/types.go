package patterns

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultKit is the kit assigned when a pattern is created without one.
const DefaultKit = "909"

// Pattern is a user-authored beat pattern.
// ID and Created are assigned once by Repository.Create and never change.
type Pattern struct {
	ID       string          `json:"id"`       // UUID assigned by the IdentityAllocator
	Name     string          `json:"name"`     // Display name, "Pattern N" when not supplied
	Kit      string          `json:"kit"`      // Referenced sample set, e.g. "909"
	Pattern  json.RawMessage `json:"pattern"`  // Opaque step/track content
	Created  time.Time       `json:"created"`  // Set once at creation
	Modified time.Time       `json:"modified"` // Bumped on every successful mutation
}

// Collection is the ordered set of patterns persisted in one slot.
// Order is insertion order; nothing re-sorts it.
type Collection []Pattern

// Patch holds the fields an update may change. Nil/empty fields are left alone.
// There is deliberately no way to express id or created here.
type Patch struct {
	Name    *string         `json:"name,omitempty"`
	Kit     *string         `json:"kit,omitempty"`
	Pattern json.RawMessage `json:"pattern,omitempty"`
}

// Draft is a pattern without identity or timestamps, as produced by import.
// Passing it through Repository.Create turns it into a Pattern.
type Draft struct {
	Name    string          `json:"name,omitempty"`
	Kit     string          `json:"kit"`
	Pattern json.RawMessage `json:"pattern"`
}

// String makes patterns readable in logs and test failures.
func (p Pattern) String() string {
	return fmt.Sprintf("%s %q kit=%s", p.ID, p.Name, p.Kit)
}

// Index returns the position of the pattern with the given id, or -1.
func (c Collection) Index(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns a copy of the pattern with the given id.
func (c Collection) Find(id string) (Pattern, bool) {
	if i := c.Index(id); i >= 0 {
		return c[i], true
	}
	return Pattern{}, false
}

// IDs returns every pattern id in collection order.
func (c Collection) IDs() []string {
	ids := make([]string, 0, len(c))
	for i := range c {
		ids = append(ids, c[i].ID)
	}
	return ids
}

// Validate checks the collection invariants: every entry valid and ids unique.
func (c Collection) Validate() error {
	seen := make(map[string]int, len(c))
	for i := range c {
		if err := c[i].Validate(); err != nil {
			return fmt.Errorf("pattern at index %d: %w", i, err)
		}
		if prev, dup := seen[c[i].ID]; dup {
			return fmt.Errorf("duplicate pattern id %q at index %d and %d", c[i].ID, prev, i)
		}
		seen[c[i].ID] = i
	}
	return nil
}

// ValidateChanges checks only what a mutation of prev into c introduced:
// entries that are new or differ from their stored version must be valid, and
// their ids must not collide. Damage already present in prev is left alone so
// unrelated writes keep working.
func (c Collection) ValidateChanges(prev Collection) error {
	stored := make(map[string][]Pattern, len(prev))
	for _, p := range prev {
		stored[p.ID] = append(stored[p.ID], p)
	}
	count := make(map[string]int, len(c))
	for i := range c {
		count[c[i].ID]++
	}
	for i := range c {
		p := &c[i]
		if unchanged(stored[p.ID], p) {
			continue
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("pattern at index %d: %w", i, err)
		}
		if count[p.ID] > 1 {
			return fmt.Errorf("duplicate pattern id %q at index %d", p.ID, i)
		}
	}
	return nil
}

func unchanged(versions []Pattern, p *Pattern) bool {
	for _, v := range versions {
		if v.Name == p.Name && v.Kit == p.Kit && bytes.Equal(v.Pattern, p.Pattern) &&
			v.Created.Equal(p.Created) && v.Modified.Equal(p.Modified) {
			return true
		}
	}
	return false
}

// Validate checks if the Pattern has valid field values.
func (p *Pattern) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("pattern id cannot be empty")
	}
	if p.Created.After(p.Modified) {
		return fmt.Errorf("created %s is later than modified %s",
			p.Created.Format(time.RFC3339Nano), p.Modified.Format(time.RFC3339Nano))
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Kit == nil && len(p.Pattern) == 0
}

// Validate rejects patches that would break a pattern: an empty kit or a
// pattern field that is present but null.
func (p Patch) Validate() error {
	if p.Kit != nil && *p.Kit == "" {
		return fmt.Errorf("kit cannot be empty")
	}
	if len(p.Pattern) > 0 && !HasPayload(p.Pattern) {
		return fmt.Errorf("pattern must be a non-null JSON value")
	}
	return nil
}

// Apply merges the patch over dst. ID, Created and Modified are untouched.
func (p Patch) Apply(dst *Pattern) {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.Kit != nil {
		dst.Kit = *p.Kit
	}
	if len(p.Pattern) > 0 {
		dst.Pattern = cloneRaw(p.Pattern)
	}
}

// HasPayload reports whether raw holds a present pattern value: well-formed
// JSON that is not null. The content itself is never inspected further.
func HasPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false
	}
	return json.Valid(trimmed)
}

// DefaultName is the label given to a pattern created without a name when the
// collection currently holds n patterns.
func DefaultName(n int) string {
	return fmt.Sprintf("Pattern %d", n+1)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
