package filter

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/ozzaii/beatflow/pkg/patterns"
)

// Criteria defines filtering criteria for patterns.
// All filters are ANDed together - a pattern must match ALL criteria to pass.
type Criteria struct {
	Since    time.Time // Lower bound on Modified, zero = no filter
	Until    time.Time // Upper bound on Modified, zero = no filter
	KitGlob  string    // Glob pattern for kit, empty = no filter
	NameGlob string    // Case-insensitive glob pattern for name, empty = no filter
}

// Matches returns true if the pattern matches all filter criteria.
func (c *Criteria) Matches(p *patterns.Pattern) bool {
	if !c.Since.IsZero() && p.Modified.Before(c.Since) {
		return false
	}
	if !c.Until.IsZero() && p.Modified.After(c.Until) {
		return false
	}

	if c.KitGlob != "" {
		matched, err := filepath.Match(c.KitGlob, p.Kit)
		if err != nil || !matched {
			return false
		}
	}

	if c.NameGlob != "" {
		matched, err := filepath.Match(strings.ToLower(c.NameGlob), strings.ToLower(p.Name))
		if err != nil || !matched {
			return false
		}
	}

	return true
}

// Apply returns the patterns of c that match, keeping collection order.
func (c *Criteria) Apply(coll patterns.Collection) patterns.Collection {
	if !c.HasFilters() {
		return coll
	}
	out := make(patterns.Collection, 0, len(coll))
	for i := range coll {
		if c.Matches(&coll[i]) {
			out = append(out, coll[i])
		}
	}
	return out
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return !c.Since.IsZero() ||
		!c.Until.IsZero() ||
		c.KitGlob != "" ||
		c.NameGlob != ""
}

// Validate reports malformed glob patterns up front instead of silently
// matching nothing.
func (c *Criteria) Validate() error {
	for _, glob := range []string{c.KitGlob, c.NameGlob} {
		if glob == "" {
			continue
		}
		if _, err := filepath.Match(glob, ""); err != nil {
			return err
		}
	}
	return nil
}
