package patterns

import "fmt"

// Slot key helpers
//
// All keys are namespaced so several independent collections can share a backend.
//
// Key pattern: beatflow:{namespace}:{entity}

// CollectionKey returns the slot key holding a namespace's pattern collection.
// Pattern: beatflow:{namespace}:patterns
func CollectionKey(namespace string) string {
	return fmt.Sprintf("beatflow:%s:patterns", namespace)
}
