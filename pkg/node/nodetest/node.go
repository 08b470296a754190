// Package nodetest serves an in-memory Peerster node web API for tests and
// local runs. It keeps just enough state to answer every endpoint the client
// uses; nothing is gossiped.
package nodetest

import (
	"sort"
	"sync"

	"github.com/ryandielhenn/gossipview/pkg/gossip"
	"github.com/ryandielhenn/gossipview/pkg/node"
)

type Node struct {
	mu       sync.Mutex
	name     string
	rumors   []node.Rumor
	next     map[string]uint32
	peers    []string
	users    []node.User
	privates []node.PrivateMessage
	files    []gossip.File
	results  []gossip.SearchResult
	searches []node.SearchRequest
	requests map[string]int

	fail         func(method, path string) int
	echoPrivate  bool
	echoDownload bool
}

func New(name string) *Node {
	return &Node{
		name:     name,
		next:     make(map[string]uint32),
		requests: make(map[string]int),
	}
}

// SetFail installs fn, consulted before every request; a non-zero status is
// returned instead of the normal answer. nil restores normal operation.
func (n *Node) SetFail(fn func(method, path string) int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fail = fn
}

// SetEcho makes POST /privateMessage and POST /fileDownload answer with the
// stored record instead of an empty body.
func (n *Node) SetEcho(private, download bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.echoPrivate = private
	n.echoDownload = download
}

// AddRumor stores a rumor from origin with the next sequence number.
func (n *Node) AddRumor(origin, text string) node.Rumor {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.addRumorLocked(origin, text)
}

func (n *Node) addRumorLocked(origin, text string) node.Rumor {
	if n.next[origin] == 0 {
		n.next[origin] = 1
	}
	r := node.Rumor{Origin: origin, ID: n.next[origin], Text: text}
	n.next[origin]++
	n.rumors = append(n.rumors, r)
	return r
}

func (n *Node) AddPeer(addr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers = append(n.peers, addr)
}

func (n *Node) AddUser(name, addr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, node.User{Name: name, Address: addr})
}

// Deliver stores a private message as if it had been routed to this node.
func (n *Node) Deliver(origin, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.privates = append(n.privates, node.PrivateMessage{Origin: origin, Text: text, Destination: n.name, HopLimit: 10})
}

func (n *Node) AddSearchResult(r gossip.SearchResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, r)
}

// Searches returns the search requests received so far.
func (n *Node) Searches() []node.SearchRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]node.SearchRequest(nil), n.searches...)
}

// Requests returns how many requests hit "METHOD /path".
func (n *Node) Requests(op string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.requests[op]
}

// rumorsSince returns every rumor the holder of theirs has not seen, and
// the node's own status vector.
func (n *Node) rumorsSince(theirs []gossip.PeerStatus) node.RumorsAndStatuses {
	have := gossip.NewStatusVector(theirs)
	out := node.RumorsAndStatuses{Rumors: []node.Rumor{}, Statuses: []gossip.PeerStatus{}}
	for _, r := range n.rumors {
		if r.ID >= have.Next(r.Origin) {
			out.Rumors = append(out.Rumors, r)
		}
	}
	origins := make([]string, 0, len(n.next))
	for o := range n.next {
		origins = append(origins, o)
	}
	sort.Strings(origins)
	for _, o := range origins {
		out.Statuses = append(out.Statuses, gossip.PeerStatus{Identifier: o, NextID: n.next[o]})
	}
	return out
}
