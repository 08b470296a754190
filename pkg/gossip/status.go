package gossip

import (
	"maps"
	"slices"
)

// PeerStatus is the wire form of one status vector entry.
type PeerStatus struct {
	Identifier string
	NextID     uint32
}

// StatusVector maps an origin to the next sequence number the holder expects
// from it. The client never computes one; it only echoes what the node last
// returned.
type StatusVector map[string]uint32

// NewStatusVector builds a vector from its wire form. Later duplicates of an
// identifier win.
func NewStatusVector(statuses []PeerStatus) StatusVector {
	sv := make(StatusVector, len(statuses))
	for _, s := range statuses {
		sv[s.Identifier] = s.NextID
	}
	return sv
}

// Next returns the next expected ID for origin, zero if unknown.
func (sv StatusVector) Next(origin string) uint32 {
	return sv[origin]
}

// Clone returns an independent copy. The clone of a nil vector is empty, not nil.
func (sv StatusVector) Clone() StatusVector {
	out := make(StatusVector, len(sv))
	maps.Copy(out, sv)
	return out
}

// Equal reports whether both vectors hold the same entries.
func (sv StatusVector) Equal(other StatusVector) bool {
	return maps.Equal(sv, other)
}

// Statuses returns the wire form sorted by identifier. It never returns nil
// so that an empty vector encodes as [] rather than null.
func (sv StatusVector) Statuses() []PeerStatus {
	out := make([]PeerStatus, 0, len(sv))
	for _, id := range slices.Sorted(maps.Keys(sv)) {
		out = append(out, PeerStatus{Identifier: id, NextID: sv[id]})
	}
	return out
}
