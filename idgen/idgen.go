// Package idgen generates identifiers for subscriptions, runtime bindings
// and emitted events.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 UUID v7 strings (time-sortable).
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed prefix to every ID of gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Compact strips the dashes from gen's IDs so they can be used as
// JavaScript identifiers.
func Compact(gen Generator) Generator {
	return func() string {
		return strings.ReplaceAll(gen(), "-", "")
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}
