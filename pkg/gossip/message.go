package gossip

// Rumor is a broadcast chat message. ID is the per-origin sequence number.
type Rumor struct {
	Origin string
	ID     uint32
	Text   string
}

// IsRoute reports whether the rumor carries no text. Nodes emit those as
// routing keepalives and they are never shown.
func (r Rumor) IsRoute() bool {
	return r.Text == ""
}

// PrivateMessage is a point-to-point message as listed by the node.
type PrivateMessage struct {
	Origin      string
	Destination string
	Text        string
}

// Peer is a directly connected gossip neighbour ("ip:port").
type Peer struct {
	Address string
}

// User is an origin the node knows a route to.
type User struct {
	Name    string
	Address string
}

// File is a file indexed or downloaded by the node. Hash is the hex encoded
// metafile hash.
type File struct {
	Name string
	Hash string
}

// SearchResult is a file match reported by the node for a previous search.
// Full is set once every chunk has a known source.
type SearchResult struct {
	Name string
	Hash string
	Full bool
}

// RumorBatch is what the node answers to both fetching and posting rumors.
type RumorBatch struct {
	Rumors   []Rumor
	Statuses StatusVector
}
