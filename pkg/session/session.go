// Package session assembles everything one client instance needs to mirror
// a Peerster node: the node client, one channel per stream, the poller that
// refreshes them and the dispatcher for user actions. All state is owned by
// the Session value; nothing is global.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/gossipview/pkg/action"
	"github.com/ryandielhenn/gossipview/pkg/gossip"
	"github.com/ryandielhenn/gossipview/pkg/node"
	"github.com/ryandielhenn/gossipview/pkg/syncer"
)

// Channel names, also used as metric labels.
const (
	ChannelRumors  = "rumors"
	ChannelPeers   = "peers"
	ChannelUsers   = "users"
	ChannelPrivate = "private_messages"
	ChannelFiles   = "files"
	ChannelResults = "search_results"
)

type Config struct {
	NodeAddr          string
	PollInterval      time.Duration
	RequestTimeout    time.Duration
	SearchBudget      uint64
	MergePrivateSends bool
	Notifier          action.Notifier
	Logger            *zap.Logger
}

type Session struct {
	Node *node.Client

	Rumors  *syncer.Channel[gossip.Rumor, gossip.StatusVector]
	Peers   *syncer.Channel[gossip.Peer, syncer.None]
	Users   *syncer.Channel[gossip.User, syncer.None]
	Private *syncer.Channel[gossip.PrivateMessage, int]
	Files   *syncer.Channel[gossip.File, syncer.None]
	Results *syncer.Channel[gossip.SearchResult, syncer.None]

	Actions *action.Dispatcher

	poller *syncer.Poller
	logger *zap.Logger

	mu       sync.RWMutex
	identity string
}

func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	logger := cfg.Logger.Named("session")
	nc := node.NewClient(cfg.NodeAddr, cfg.RequestTimeout, cfg.Logger)

	s := &Session{
		Node:   nc,
		logger: logger,
		Rumors: syncer.NewChannel(syncer.Config[gossip.Rumor, gossip.StatusVector]{
			Name: ChannelRumors,
			Fetch: func(ctx context.Context, sv gossip.StatusVector) ([]gossip.Rumor, gossip.StatusVector, error) {
				batch, err := nc.FetchRumors(ctx, sv)
				return batch.Rumors, batch.Statuses, err
			},
			Keep:    func(r gossip.Rumor) bool { return !r.IsRoute() },
			Initial: gossip.StatusVector{},
			Clone:   gossip.StatusVector.Clone,
			Timeout: cfg.RequestTimeout,
			Logger:  cfg.Logger,
		}),
		Peers: syncer.NewChannel(syncer.Config[gossip.Peer, syncer.None]{
			Name:    ChannelPeers,
			Fetch:   syncer.ListFetcher(nc.FetchPeers),
			Timeout: cfg.RequestTimeout,
			Logger:  cfg.Logger,
		}),
		Users: syncer.NewChannel(syncer.Config[gossip.User, syncer.None]{
			Name:    ChannelUsers,
			Fetch:   syncer.ListFetcher(nc.FetchUsers),
			Timeout: cfg.RequestTimeout,
			Logger:  cfg.Logger,
		}),
		Private: syncer.NewChannel(syncer.Config[gossip.PrivateMessage, int]{
			Name:    ChannelPrivate,
			Fetch:   syncer.CountFetcher(nc.FetchPrivateMessages),
			Keep:    func(m gossip.PrivateMessage) bool { return m.Text != "" },
			Timeout: cfg.RequestTimeout,
			Logger:  cfg.Logger,
		}),
		Files: syncer.NewChannel(syncer.Config[gossip.File, syncer.None]{
			Name:    ChannelFiles,
			Fetch:   syncer.ListFetcher(nc.FetchFiles),
			Timeout: cfg.RequestTimeout,
			Logger:  cfg.Logger,
		}),
		Results: syncer.NewChannel(syncer.Config[gossip.SearchResult, syncer.None]{
			Name:    ChannelResults,
			Fetch:   syncer.ListFetcher(nc.FetchSearchResults),
			Timeout: cfg.RequestTimeout,
			Logger:  cfg.Logger,
		}),
	}

	s.Actions = action.NewDispatcher(action.Config{
		Node: nc,
		Channels: action.Channels{
			Rumors:  s.Rumors,
			Peers:   s.Peers,
			Private: s.Private,
			Files:   s.Files,
		},
		Notifier:          cfg.Notifier,
		SearchBudget:      cfg.SearchBudget,
		MergePrivateSends: cfg.MergePrivateSends,
		Identity:          s.Identity,
		Logger:            cfg.Logger,
	})

	s.poller = syncer.NewPoller(cfg.PollInterval, cfg.Logger,
		s.Rumors, s.Peers, s.Users, s.Private, s.Files, s.Results)
	return s
}

// Identity returns the node name, empty until LoadIdentity succeeded.
func (s *Session) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// LoadIdentity asks the node for its name.
func (s *Session) LoadIdentity(ctx context.Context) error {
	name, err := s.Node.Identity(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.identity = name
	s.mu.Unlock()
	return nil
}

// Bootstrap loads the identity and runs one cycle of every channel. Nothing
// it does is fatal; failures are logged.
func (s *Session) Bootstrap(ctx context.Context) {
	if err := s.LoadIdentity(ctx); err != nil {
		s.logger.Warn("could not load node identity", zap.Error(err))
	}
	s.poller.Bootstrap(ctx)
}

// Run loads the identity if still unknown, gives every channel one immediate
// cycle and then polls until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	if s.Identity() == "" {
		if err := s.LoadIdentity(ctx); err != nil {
			s.logger.Warn("could not load node identity", zap.Error(err))
		}
	}
	return s.poller.Run(ctx)
}

// Rebind points the session at a new node address. Collections and the
// rumor vector are kept. The private-message count indexes the old node's
// list, so it restarts at zero and dedup absorbs what comes back twice. The
// identity is reloaded from the new node.
func (s *Session) Rebind(ctx context.Context, addr string) {
	s.Node.SetAddr(addr)
	s.Private.Reset(0)

	s.mu.Lock()
	s.identity = ""
	s.mu.Unlock()
	if err := s.LoadIdentity(ctx); err != nil {
		s.logger.Warn("could not load identity of rebound node", zap.String("addr", addr), zap.Error(err))
	}
}
