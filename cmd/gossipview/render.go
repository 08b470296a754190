package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/ryandielhenn/gossipview/pkg/gossip"
	"github.com/ryandielhenn/gossipview/pkg/session"
)

// renderer prints every delta as it is merged. Channels deliver from their
// own goroutines, so writes are serialized.
type renderer struct {
	mu sync.Mutex
	w  io.Writer
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{w: w}
}

func (r *renderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, format, args...)
}

func (r *renderer) Title(name, addr string) {
	if name == "" {
		name = "(unknown node)"
	}
	r.printf("== %s @ %s ==\n", name, addr)
}

// Alert reports a failed action.
func (r *renderer) Alert(action string, err error) {
	r.printf("! %s: %v\n", action, err)
}

func (r *renderer) Attach(s *session.Session) {
	s.Rumors.OnDelta(func(d []gossip.Rumor) {
		for _, m := range d {
			r.printf("%s: %s\n", m.Origin, m.Text)
		}
	})
	s.Private.OnDelta(func(d []gossip.PrivateMessage) {
		for _, m := range d {
			r.printf("[private] %s -> %s: %s\n", m.Origin, m.Destination, m.Text)
		}
	})
	s.Peers.OnDelta(func(d []gossip.Peer) {
		for _, p := range d {
			r.printf("+ peer %s\n", p.Address)
		}
	})
	s.Users.OnDelta(func(d []gossip.User) {
		for _, u := range d {
			r.printf("+ user %s (%s)\n", u.Name, u.Address)
		}
	})
	s.Files.OnDelta(func(d []gossip.File) {
		for _, f := range d {
			r.printf("+ file %s %s\n", f.Name, f.Hash)
		}
	})
	s.Results.OnDelta(func(d []gossip.SearchResult) {
		for _, res := range d {
			r.printf("? match %s %s full=%t\n", res.Name, res.Hash, res.Full)
		}
	})
}

// List prints a full collection, used by the listing commands.
func List[T any](r *renderer, title string, items []T, line func(T) string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "-- %s (%d)\n", title, len(items))
	for _, it := range items {
		fmt.Fprintf(r.w, "   %s\n", line(it))
	}
}
