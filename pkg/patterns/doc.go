// Package patterns provides the data model and persistence layer for beatflow's
// user-authored beat patterns.
//
// # Overview
//
// A Pattern is a named step sequence that references a sample kit (for example
// "909" or "808"). The whole collection of patterns is persisted as one JSON array
// in a single slot (see package slot). There is no secondary index and no partial
// write: every mutation loads the full collection, changes it in memory and writes
// the full collection back.
//
// # Components
//
// IdentityAllocator hands out collision-resistant IDs (UUIDv4).
//
// Store reads and writes the collection slot. Its Update method wraps the
// read-modify-write cycle in the backend's compare-and-swap and retries on
// conflict, so two writers sharing a slot never silently clobber each other.
//
// Repository implements Create, List, Get, Update and Remove on top of Store.
// Only Repository assigns IDs and timestamps.
//
// # Errors
//
// Every failure is logged where it happens and returned as a *Error carrying one
// of four kinds: StorageUnavailable, ParseError, ValidationError or NotFound. Use
// errors.Is with the package sentinels to tell them apart:
//
//	p, err := repo.Update(ctx, id, patterns.Patch{Name: &name})
//	if errors.Is(err, patterns.ErrNotFound) {
//		// no pattern with that id
//	}
//
// # Slot Layout
//
// Key: beatflow:{namespace}:patterns
//
//	[{"id":"...","name":"Pattern 1","kit":"909","pattern":{...},
//	  "created":"2025-01-02T03:04:05.678Z","modified":"2025-01-02T03:04:05.678Z"}, ...]
package patterns
