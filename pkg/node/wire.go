package node

import "github.com/ryandielhenn/gossipview/pkg/gossip"

// Header names the node reads cursors from.
const (
	HeaderStatuses = "x-statuses"
	HeaderIndex    = "x-index"
)

// Rumor is the web encoding of a rumor. Non-chat rumors decode with an empty
// Text.
type Rumor struct {
	Origin string
	ID     uint32
	Text   string
}

type RumorsAndStatuses struct {
	Rumors   []Rumor
	Statuses []gossip.PeerStatus
}

type PrivateMessage struct {
	Origin      string
	ID          uint32
	Text        string
	Destination string
	HopLimit    uint32
}

type User struct {
	Name    string
	Address string
	Secure  bool
}

type MessageRequest struct {
	Destination string
	Text        string
}

type FileRequest struct {
	Name        string
	Destination string
	Hash        string
}

type SearchRequest struct {
	Keywords string
	Budget   uint64
}

func (b RumorsAndStatuses) batch() gossip.RumorBatch {
	out := gossip.RumorBatch{
		Rumors:   make([]gossip.Rumor, 0, len(b.Rumors)),
		Statuses: gossip.NewStatusVector(b.Statuses),
	}
	for _, r := range b.Rumors {
		out.Rumors = append(out.Rumors, gossip.Rumor{Origin: r.Origin, ID: r.ID, Text: r.Text})
	}
	return out
}

func (m PrivateMessage) entity() gossip.PrivateMessage {
	return gossip.PrivateMessage{Origin: m.Origin, Destination: m.Destination, Text: m.Text}
}
