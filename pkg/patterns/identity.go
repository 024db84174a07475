package patterns

import "github.com/google/uuid"

// IdentityAllocator hands out pattern ids.
type IdentityAllocator interface {
	Allocate() string
}

// UUIDAllocator allocates random (v4) UUIDs. It needs no coordination between
// callers and never looks at existing collection content.
type UUIDAllocator struct{}

func (UUIDAllocator) Allocate() string {
	return uuid.New().String()
}

// AllocatorFunc adapts a plain function to IdentityAllocator.
type AllocatorFunc func() string

func (f AllocatorFunc) Allocate() string { return f() }

// IsUUID checks if a string is a valid UUID format.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
