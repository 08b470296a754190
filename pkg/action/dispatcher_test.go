package action

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ryandielhenn/gossipview/pkg/gossip"
	"github.com/ryandielhenn/gossipview/pkg/syncer"
)

type fakeNode struct {
	calls    map[string]int
	err      error
	batch    gossip.RumorBatch
	lastSV   gossip.StatusVector
	known    map[string]bool
	echoPM   *gossip.PrivateMessage
	searches []uint64
}

func newFakeNode() *fakeNode {
	return &fakeNode{calls: map[string]int{}, known: map[string]bool{}}
}

func (f *fakeNode) PostRumor(_ context.Context, _ string, sv gossip.StatusVector) (gossip.RumorBatch, error) {
	f.calls["post"]++
	f.lastSV = sv
	return f.batch, f.err
}

func (f *fakeNode) AddPeer(_ context.Context, addr string) (gossip.Peer, bool, error) {
	f.calls["peer"]++
	if f.err != nil {
		return gossip.Peer{}, false, f.err
	}
	added := !f.known[addr]
	f.known[addr] = true
	return gossip.Peer{Address: addr}, added, nil
}

func (f *fakeNode) PostPrivateMessage(context.Context, string, string) (*gossip.PrivateMessage, error) {
	f.calls["pm"]++
	return f.echoPM, f.err
}

func (f *fakeNode) UploadFile(_ context.Context, name string) (gossip.File, error) {
	f.calls["upload"]++
	return gossip.File{Name: name, Hash: "aa"}, f.err
}

func (f *fakeNode) DownloadFile(context.Context, string, string, string) (*gossip.File, error) {
	f.calls["download"]++
	return nil, f.err
}

func (f *fakeNode) Search(_ context.Context, _ string, budget uint64) error {
	f.calls["search"]++
	f.searches = append(f.searches, budget)
	return f.err
}

type notified struct {
	actions []string
	errs    []error
}

func (n *notified) Notify(action string, err error) {
	n.actions = append(n.actions, action)
	n.errs = append(n.errs, err)
}

func setup(cfg Config) (*Dispatcher, *fakeNode, *notified, Channels) {
	fn := newFakeNode()
	note := &notified{}
	ch := Channels{
		Rumors: syncer.NewChannel(syncer.Config[gossip.Rumor, gossip.StatusVector]{
			Name: "rumors", Keep: func(r gossip.Rumor) bool { return !r.IsRoute() },
			Initial: gossip.StatusVector{}, Clone: gossip.StatusVector.Clone,
		}),
		Peers:   syncer.NewChannel(syncer.Config[gossip.Peer, syncer.None]{Name: "peers"}),
		Private: syncer.NewChannel(syncer.Config[gossip.PrivateMessage, int]{Name: "private"}),
		Files:   syncer.NewChannel(syncer.Config[gossip.File, syncer.None]{Name: "files"}),
	}
	cfg.Node = fn
	cfg.Channels = ch
	cfg.Notifier = note
	return NewDispatcher(cfg), fn, note, ch
}

func TestAddPeer_Validation(t *testing.T) {
	d, fn, note, ch := setup(Config{})

	err := d.AddPeer(context.Background(), "999.1.1.1:0001")
	require.ErrorIs(t, err, ErrValidation)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Zero(t, fn.calls["peer"])
	require.Equal(t, []string{"add_peer"}, note.actions)

	require.NoError(t, d.AddPeer(context.Background(), "127.0.0.1:8080"))
	require.Equal(t, []gossip.Peer{{Address: "127.0.0.1:8080"}}, ch.Peers.Items())

	err = d.AddPeer(context.Background(), "127.0.0.1:8080")
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, 1, fn.calls["peer"])
}

func TestValidatePeerAddress(t *testing.T) {
	cases := []struct {
		addr string
		ok   bool
	}{
		{"127.0.0.1:8080", true},
		{"0.0.0.0:0000", true},
		{"255.255.255.255:9999", true},
		{"256.1.1.1:5000", false},
		{"1.1.1.1:500", false},
		{"1.1.1.1:50000", false},
		{"1.1.1:5000", false},
		{"localhost:5000", false},
		{"", false},
		{" 1.1.1.1:5000", false},
	}
	for _, c := range cases {
		err := ValidatePeerAddress(c.addr)
		if (err == nil) != c.ok {
			t.Fatalf("ValidatePeerAddress(%q) = %v, want ok=%v", c.addr, err, c.ok)
		}
	}
}

func TestPostMessage_AdoptsVectorAndMerges(t *testing.T) {
	d, fn, _, ch := setup(Config{})
	fn.batch = gossip.RumorBatch{
		Rumors:   []gossip.Rumor{{Origin: "me", ID: 1, Text: "hello"}, {Origin: "r", ID: 1}},
		Statuses: gossip.StatusVector{"me": 2, "r": 2},
	}

	require.NoError(t, d.PostMessage(context.Background(), "hello"))
	require.Equal(t, gossip.StatusVector{}, fn.lastSV)
	require.Equal(t, gossip.StatusVector{"me": 2, "r": 2}, ch.Rumors.Cursor())
	require.Equal(t, []gossip.Rumor{{Origin: "me", ID: 1, Text: "hello"}}, ch.Rumors.Items())
}

func TestPostMessage_EmptyIsNoop(t *testing.T) {
	d, fn, note, _ := setup(Config{})
	require.NoError(t, d.PostMessage(context.Background(), ""))
	require.Zero(t, fn.calls["post"])
	require.Empty(t, note.actions)
}

func TestPostMessage_FailureKeepsState(t *testing.T) {
	d, fn, note, ch := setup(Config{})
	fn.err = errors.New("timeout")

	err := d.PostMessage(context.Background(), "hello")
	require.Error(t, err)
	require.Equal(t, gossip.StatusVector{}, ch.Rumors.Cursor())
	require.Zero(t, ch.Rumors.Len())
	require.Equal(t, []error{err}, note.errs)
}

func TestPostPrivateMessage_AsymmetryByDefault(t *testing.T) {
	d, fn, _, ch := setup(Config{})
	require.NoError(t, d.PostPrivateMessage(context.Background(), "psst", "bob"))
	require.Equal(t, 1, fn.calls["pm"])
	require.Zero(t, ch.Private.Len())
}

func TestPostPrivateMessage_MergeWhenConfigured(t *testing.T) {
	d, _, _, ch := setup(Config{MergePrivateSends: true, Identity: func() string { return "me" }})

	require.NoError(t, d.PostPrivateMessage(context.Background(), "psst", "bob"))
	require.Equal(t, []gossip.PrivateMessage{{Origin: "me", Destination: "bob", Text: "psst"}}, ch.Private.Items())
	require.Equal(t, 0, ch.Private.Cursor())
}

func TestPostPrivateMessage_EmptyTextIsNoop(t *testing.T) {
	d, fn, _, _ := setup(Config{})
	require.NoError(t, d.PostPrivateMessage(context.Background(), "", "bob"))
	require.Zero(t, fn.calls["pm"])
}

func TestUploadFile_DuplicateNameRejectedWithoutRequest(t *testing.T) {
	d, fn, note, ch := setup(Config{})

	require.NoError(t, d.UploadFile(context.Background(), "a.txt"))
	require.Equal(t, []gossip.File{{Name: "a.txt", Hash: "aa"}}, ch.Files.Items())

	err := d.UploadFile(context.Background(), "a.txt")
	var dup *DuplicateNameError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "a.txt", dup.Name)
	require.Equal(t, 1, fn.calls["upload"])
	require.Equal(t, []string{"upload_file"}, note.actions)
}

func TestDownloadFile(t *testing.T) {
	d, fn, _, ch := setup(Config{})

	require.NoError(t, d.DownloadFile(context.Background(), "b.bin", "beef", "carol"))
	require.Equal(t, []gossip.File{{Name: "b.bin", Hash: "beef"}}, ch.Files.Items())

	var dup *DuplicateNameError
	require.ErrorAs(t, d.DownloadFile(context.Background(), "b.bin", "cafe", ""), &dup)
	require.ErrorIs(t, d.DownloadFile(context.Background(), "c.bin", "xyz", ""), ErrValidation)
	require.Equal(t, 1, fn.calls["download"])
}

func TestSearch_DefaultBudget(t *testing.T) {
	d, fn, _, _ := setup(Config{SearchBudget: 8})

	require.NoError(t, d.Search(context.Background(), "", 0))
	require.Zero(t, fn.calls["search"])

	require.NoError(t, d.Search(context.Background(), "cat", 0))
	require.NoError(t, d.Search(context.Background(), "cat", 32))
	require.Equal(t, []uint64{8, 32}, fn.searches)
}

func TestTransportFailureNotified(t *testing.T) {
	d, fn, note, _ := setup(Config{})
	fn.err = errors.New("connection refused")

	err := d.Search(context.Background(), "cat", 0)
	require.Error(t, err)
	require.Equal(t, []string{"search"}, note.actions)
}
