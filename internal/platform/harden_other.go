//go:build !(linux || darwin)

package platform

func DisableCoreDumps() error { return nil }

func LockMemory([]byte) error { return nil }

func UnlockMemory([]byte) error { return nil }
