package app

import "github.com/nhle/medtracker/internal/keys"

// KeyMap is re-exported from the keys package so callers constructing the
// app do not need a second import.
type KeyMap = keys.KeyMap

// DefaultKeyMap delegates to keys.DefaultKeyMap.
func DefaultKeyMap() *KeyMap {
	return keys.DefaultKeyMap()
}
