package patterns

import "sort"

// KnownKits maps the kit literals the sample library ships with to a display name.
// A pattern may reference any kit; unknown kits are accepted and only flagged.
var KnownKits = map[string]string{
	"909": "Roland TR-909",
	"808": "Roland TR-808",
	"707": "Roland TR-707",
	"606": "Roland TR-606",
	"727": "Roland TR-727",
}

// IsKnownKit returns true if kit is in KnownKits.
func IsKnownKit(kit string) bool {
	_, ok := KnownKits[kit]
	return ok
}

// KitNames returns the known kit literals, sorted.
func KitNames() []string {
	names := make([]string, 0, len(KnownKits))
	for k := range KnownKits {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
