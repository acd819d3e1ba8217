package app

import "github.com/nhle/workpresence/internal/keys"

// KeyMap is re-exported from the keys package so callers can build the root
// model without importing keys.
type KeyMap = keys.KeyMap

// DefaultKeyMap delegates to keys.DefaultKeyMap.
func DefaultKeyMap() *KeyMap {
	return keys.DefaultKeyMap()
}
