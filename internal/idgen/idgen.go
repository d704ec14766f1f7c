// Package idgen generates the opaque 128-bit identifiers used for node and
// edge ids, and for the fresh-UUID natural-key templates of spec §4.2
// (observation, credential, vulnerability, svc_observation).
//
// The teacher's own idgen package hashes title/description/creator into a
// short base36 "semantic" id for human-facing issue trackers; this system
// has no human-facing short-id convention, so node identity is just a UUID
// the way the rest of the pack generates graph node ids (see DESIGN.md).
package idgen

import "github.com/google/uuid"

// New returns a fresh opaque 128-bit identifier for a node or edge.
func New() string {
	return uuid.NewString()
}

// NewUUID is an alias of New kept distinct at call sites that derive a
// natural key from a freshly minted UUID (spec §4.2's "UUID-based natural
// keys are generated fresh per call").
func NewUUID() string {
	return uuid.NewString()
}
