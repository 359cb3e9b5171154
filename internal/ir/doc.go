// Package ir provides the value model and node specifications shared by every
// animgraph package.
//
// This package contains type definitions and pure codecs only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Value is a sealed sum type (Null, Number, String, Bool, Array, Bundle)
//   - Spec is a sealed sum type with one variant per node kind
//   - Node references are NodeID integers, never pointers
//   - Bundle keys serialize in RFC 8785 order
package ir
