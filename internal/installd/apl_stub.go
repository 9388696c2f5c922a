//go:build !linux

package installd

// Non-linux builds have no xattr-backed labeling; the operations
// succeed without effect so the rest of the install flow stays testable.

func setAPL(dir, apl string) error { return nil }

func getAPL(dir string) (string, error) { return "", nil }
