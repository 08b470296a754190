// Package gossip defines the records a Peerster node exposes over its web API:
// rumors, private messages, peers, users, shared files and search results,
// plus the status vector that tells the node how much of the rumor stream a
// client has already absorbed.
//
// Every record is a comparable value type. Two records with equal fields are
// the same entity, which is what lets the collection package deduplicate them
// without an explicit key.
//
// Typical usage:
//
//	var sv gossip.StatusVector
//	rumors, next, err := nodeClient.FetchRumors(ctx, sv)
//	sv = next
package gossip
