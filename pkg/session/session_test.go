package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ryandielhenn/gossipview/pkg/action"
	"github.com/ryandielhenn/gossipview/pkg/gossip"
	"github.com/ryandielhenn/gossipview/pkg/node/nodetest"
)

func start(t *testing.T, n *nodetest.Node, cfg Config) *Session {
	t.Helper()
	srv := httptest.NewServer(n.Handler())
	t.Cleanup(srv.Close)
	cfg.NodeAddr = srv.URL
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = time.Second
	}
	return New(cfg)
}

func TestBootstrapFillsEveryChannel(t *testing.T) {
	n := nodetest.New("alice")
	n.AddRumor("bob", "hi")
	n.AddRumor("bob", "")
	n.AddPeer("10.0.0.2:5000")
	n.AddUser("bob", "10.0.0.2:5000")
	n.Deliver("bob", "psst")
	n.AddSearchResult(gossip.SearchResult{Name: "cat.jpg", Hash: "ff"})

	s := start(t, n, Config{})
	s.Bootstrap(context.Background())

	require.Equal(t, "alice", s.Identity())
	require.Equal(t, []gossip.Rumor{{Origin: "bob", ID: 1, Text: "hi"}}, s.Rumors.Items())
	require.Equal(t, gossip.StatusVector{"bob": 3}, s.Rumors.Cursor())
	require.Equal(t, []gossip.Peer{{Address: "10.0.0.2:5000"}}, s.Peers.Items())
	require.Equal(t, []gossip.User{{Name: "bob", Address: "10.0.0.2:5000"}}, s.Users.Items())
	require.Equal(t, []gossip.PrivateMessage{{Origin: "bob", Destination: "alice", Text: "psst"}}, s.Private.Items())
	require.Equal(t, 1, s.Private.Cursor())
	require.Equal(t, []gossip.SearchResult{{Name: "cat.jpg", Hash: "ff"}}, s.Results.Items())
}

func TestRunDeliversDeltasInOrder(t *testing.T) {
	n := nodetest.New("alice")
	s := start(t, n, Config{PollInterval: 5 * time.Millisecond})

	var mu sync.Mutex
	var seen []gossip.Rumor
	s.Rumors.OnDelta(func(d []gossip.Rumor) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, d...)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	n.AddRumor("bob", "one")
	n.AddRumor("carol", "two")
	n.AddRumor("bob", "three")

	require.Eventually(t, func() bool { return s.Rumors.Len() == 3 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, s.Rumors.Items(), seen)
	require.Equal(t, gossip.StatusVector{"bob": 3, "carol": 2}, s.Rumors.Cursor())
}

func TestPollFailureDoesNotStopPolling(t *testing.T) {
	n := nodetest.New("alice")
	var mu sync.Mutex
	failing := true
	n.SetFail(func(method, path string) int {
		mu.Lock()
		defer mu.Unlock()
		if failing && path == "/node" {
			return http.StatusServiceUnavailable
		}
		return 0
	})
	n.AddPeer("10.0.0.3:5000")
	s := start(t, n, Config{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.Eventually(t, func() bool { return n.Requests("GET /node") >= 3 }, 5*time.Second, 5*time.Millisecond)
	require.Zero(t, s.Peers.Len())

	mu.Lock()
	failing = false
	mu.Unlock()
	require.Eventually(t, func() bool { return s.Peers.Len() == 1 }, 5*time.Second, 5*time.Millisecond)
}

func TestActionsThroughSession(t *testing.T) {
	n := nodetest.New("alice")
	var notes []string
	s := start(t, n, Config{
		Notifier: action.NotifierFunc(func(a string, err error) { notes = append(notes, a+": "+err.Error()) }),
	})
	s.Bootstrap(context.Background())
	ctx := context.Background()

	require.NoError(t, s.Actions.PostMessage(ctx, "hello"))
	require.Equal(t, []gossip.Rumor{{Origin: "alice", ID: 1, Text: "hello"}}, s.Rumors.Items())
	require.Equal(t, gossip.StatusVector{"alice": 2}, s.Rumors.Cursor())

	// the next poll returns nothing new
	require.NoError(t, s.Rumors.Cycle(ctx))
	require.Equal(t, 1, s.Rumors.Len())

	require.NoError(t, s.Actions.AddPeer(ctx, "127.0.0.1:8080"))
	require.Equal(t, []gossip.Peer{{Address: "127.0.0.1:8080"}}, s.Peers.Items())
	require.ErrorIs(t, s.Actions.AddPeer(ctx, "999.1.1.1:0001"), action.ErrValidation)

	require.NoError(t, s.Actions.UploadFile(ctx, "a.txt"))
	require.Equal(t, 1, n.Requests("POST /fileUpload"))
	var dup *action.DuplicateNameError
	require.ErrorAs(t, s.Actions.UploadFile(ctx, "a.txt"), &dup)
	require.Equal(t, 1, n.Requests("POST /fileUpload"))

	require.NoError(t, s.Actions.DownloadFile(ctx, "b.txt", "abcd", "bob"))
	require.Len(t, s.Files.Items(), 2)

	require.NoError(t, s.Actions.Search(ctx, "cat", 0))
	require.EqualValues(t, 2, n.Searches()[0].Budget)

	require.Len(t, notes, 2)
}

func TestPrivateSendsReappearThroughPolling(t *testing.T) {
	n := nodetest.New("alice")
	s := start(t, n, Config{})
	ctx := context.Background()
	s.Bootstrap(ctx)

	require.NoError(t, s.Actions.PostPrivateMessage(ctx, "psst", "bob"))
	require.Zero(t, s.Private.Len())

	require.NoError(t, s.Private.Cycle(ctx))
	require.Equal(t, []gossip.PrivateMessage{{Origin: "alice", Destination: "bob", Text: "psst"}}, s.Private.Items())
}

func TestMergedPrivateSendIsNotDuplicatedByPoll(t *testing.T) {
	n := nodetest.New("alice")
	s := start(t, n, Config{MergePrivateSends: true})
	ctx := context.Background()
	s.Bootstrap(ctx)

	require.NoError(t, s.Actions.PostPrivateMessage(ctx, "psst", "bob"))
	require.Equal(t, 1, s.Private.Len())
	require.Equal(t, 0, s.Private.Cursor())

	require.NoError(t, s.Private.Cycle(ctx))
	require.Equal(t, 1, s.Private.Len())
	require.Equal(t, 1, s.Private.Cursor())
}

func TestRebindKeepsCollections(t *testing.T) {
	a := nodetest.New("a")
	a.AddRumor("x", "from a")
	s := start(t, a, Config{})
	s.Bootstrap(context.Background())
	require.Equal(t, 1, s.Rumors.Len())

	b := nodetest.New("b")
	b.AddRumor("y", "from b")
	srvB := httptest.NewServer(b.Handler())
	defer srvB.Close()

	s.Rebind(context.Background(), srvB.URL)
	require.NoError(t, s.Rumors.Cycle(context.Background()))
	require.Equal(t, 2, s.Rumors.Len())
}

func TestRebindRestartsPrivateCountAndIdentity(t *testing.T) {
	a := nodetest.New("a")
	a.Deliver("x", "one")
	a.Deliver("x", "two")
	s := start(t, a, Config{})
	s.Bootstrap(context.Background())
	require.Equal(t, 2, s.Private.Cursor())
	require.Equal(t, "a", s.Identity())

	b := nodetest.New("b")
	b.Deliver("x", "three")
	srvB := httptest.NewServer(b.Handler())
	defer srvB.Close()

	s.Rebind(context.Background(), srvB.URL)
	require.Equal(t, 0, s.Private.Cursor())
	require.Equal(t, "b", s.Identity())

	require.NoError(t, s.Private.Cycle(context.Background()))
	require.Equal(t, []gossip.PrivateMessage{
		{Origin: "x", Destination: "a", Text: "one"},
		{Origin: "x", Destination: "a", Text: "two"},
		{Origin: "x", Destination: "b", Text: "three"},
	}, s.Private.Items())
	require.Equal(t, 1, s.Private.Cursor())
}
