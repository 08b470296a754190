package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/ryandielhenn/gossipview/internal/telemetry"
	"github.com/ryandielhenn/gossipview/pkg/gossip"
	"github.com/ryandielhenn/gossipview/pkg/syncer"
)

// DefaultSearchBudget is sent with searches that do not name a budget.
const DefaultSearchBudget = 2

// Node is the part of the node API user actions write through.
type Node interface {
	PostRumor(ctx context.Context, text string, sv gossip.StatusVector) (gossip.RumorBatch, error)
	AddPeer(ctx context.Context, addr string) (gossip.Peer, bool, error)
	PostPrivateMessage(ctx context.Context, text, destination string) (*gossip.PrivateMessage, error)
	UploadFile(ctx context.Context, name string) (gossip.File, error)
	DownloadFile(ctx context.Context, name, hash, destination string) (*gossip.File, error)
	Search(ctx context.Context, keywords string, budget uint64) error
}

// Notifier receives every failed action. It stands in for the user-facing
// alert of a UI.
type Notifier interface {
	Notify(action string, err error)
}

type NotifierFunc func(action string, err error)

func (f NotifierFunc) Notify(action string, err error) { f(action, err) }

// Channels are the collections actions fold their answers into.
type Channels struct {
	Rumors  *syncer.Channel[gossip.Rumor, gossip.StatusVector]
	Peers   *syncer.Channel[gossip.Peer, syncer.None]
	Private *syncer.Channel[gossip.PrivateMessage, int]
	Files   *syncer.Channel[gossip.File, syncer.None]
}

type Config struct {
	Node     Node
	Channels Channels
	Notifier Notifier
	// SearchBudget replaces a zero budget passed to Search.
	SearchBudget uint64
	// MergePrivateSends merges a sent private message right away instead of
	// waiting for it to come back through the private message channel.
	MergePrivateSends bool
	// Identity names this node; it is the origin of merged private sends.
	Identity func() string
	Logger   *zap.Logger
}

// Dispatcher validates and submits user actions. Every method returns its
// failure as a value and also hands it to the Notifier; none panics.
type Dispatcher struct {
	node         Node
	ch           Channels
	notifier     Notifier
	searchBudget uint64
	mergePrivate bool
	identity     func() string
	logger       *zap.Logger
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Notifier == nil {
		cfg.Notifier = NotifierFunc(func(string, error) {})
	}
	if cfg.SearchBudget == 0 {
		cfg.SearchBudget = DefaultSearchBudget
	}
	if cfg.Identity == nil {
		cfg.Identity = func() string { return "" }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dispatcher{
		node:         cfg.Node,
		ch:           cfg.Channels,
		notifier:     cfg.Notifier,
		searchBudget: cfg.SearchBudget,
		mergePrivate: cfg.MergePrivateSends,
		identity:     cfg.Identity,
		logger:       cfg.Logger.Named("dispatcher"),
	}
}

// AddPeer validates addr, rejects peers already held and merges the peer
// once the node has accepted it.
func (d *Dispatcher) AddPeer(ctx context.Context, addr string) error {
	return d.run(ctx, "add_peer", func(ctx context.Context, log *zap.Logger) error {
		if err := ValidatePeerAddress(addr); err != nil {
			return err
		}
		if d.ch.Peers.Contains(func(p gossip.Peer) bool { return p.Address == addr }) {
			return &ValidationError{Field: "peer address", Value: addr, Reason: "already a known peer"}
		}
		peer, added, err := d.node.AddPeer(ctx, addr)
		if err != nil {
			return err
		}
		if !added {
			log.Debug("node already knew peer", zap.String("peer", addr))
		}
		d.ch.Peers.Merge([]gossip.Peer{peer})
		return nil
	})
}

// PostMessage publishes text as a rumor. The answer carries every rumor past
// the held status vector, which is merged and adopted like a poll result.
func (d *Dispatcher) PostMessage(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return d.run(ctx, "post_message", func(ctx context.Context, _ *zap.Logger) error {
		ticket, sv := d.ch.Rumors.Begin()
		batch, err := d.node.PostRumor(ctx, text, sv)
		if err != nil {
			return err
		}
		d.ch.Rumors.Commit(ticket, batch.Rumors, batch.Statuses)
		return nil
	})
}

// PostPrivateMessage sends text to destination. Unless MergePrivateSends is
// set the message shows up only once the private message channel polls it.
func (d *Dispatcher) PostPrivateMessage(ctx context.Context, text, destination string) error {
	if text == "" {
		return nil
	}
	return d.run(ctx, "post_private_message", func(ctx context.Context, _ *zap.Logger) error {
		if destination == "" {
			return &ValidationError{Field: "destination", Value: destination, Reason: "required"}
		}
		echoed, err := d.node.PostPrivateMessage(ctx, text, destination)
		if err != nil {
			return err
		}
		if d.mergePrivate {
			sent := gossip.PrivateMessage{Origin: d.identity(), Destination: destination, Text: text}
			if echoed != nil {
				sent = *echoed
			}
			d.ch.Private.Merge([]gossip.PrivateMessage{sent})
		}
		return nil
	})
}

// UploadFile indexes name on the node and merges the returned record.
func (d *Dispatcher) UploadFile(ctx context.Context, name string) error {
	return d.run(ctx, "upload_file", func(ctx context.Context, _ *zap.Logger) error {
		if err := d.checkFileName(name); err != nil {
			return err
		}
		f, err := d.node.UploadFile(ctx, name)
		if err != nil {
			return err
		}
		d.ch.Files.Merge([]gossip.File{f})
		return nil
	})
}

// DownloadFile fetches hash under name, from destination when it is set and
// from the whole network otherwise.
func (d *Dispatcher) DownloadFile(ctx context.Context, name, hash, destination string) error {
	return d.run(ctx, "download_file", func(ctx context.Context, _ *zap.Logger) error {
		if err := d.checkFileName(name); err != nil {
			return err
		}
		if err := validateHash(hash); err != nil {
			return err
		}
		f, err := d.node.DownloadFile(ctx, name, hash, destination)
		if err != nil {
			return err
		}
		record := gossip.File{Name: name, Hash: hash}
		if f != nil {
			record = *f
		}
		d.ch.Files.Merge([]gossip.File{record})
		return nil
	})
}

// Search starts a search for keywords. A zero budget selects the configured
// default. Results arrive through the search result channel.
func (d *Dispatcher) Search(ctx context.Context, keywords string, budget uint64) error {
	if keywords == "" {
		return nil
	}
	if budget == 0 {
		budget = d.searchBudget
	}
	return d.run(ctx, "search", func(ctx context.Context, _ *zap.Logger) error {
		return d.node.Search(ctx, keywords, budget)
	})
}

func (d *Dispatcher) checkFileName(name string) error {
	if name == "" {
		return &ValidationError{Field: "file name", Value: name, Reason: "required"}
	}
	if d.ch.Files.Contains(func(f gossip.File) bool { return f.Name == name }) {
		return &DuplicateNameError{Name: name}
	}
	return nil
}

func (d *Dispatcher) run(ctx context.Context, action string, fn func(context.Context, *zap.Logger) error) (err error) {
	log := d.logger.With(zap.String("action", action), zap.Stringer("action_id", ulid.Make()))

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = fn(ctx, log)
	}()
	telemetry.ActionsTotal.WithLabelValues(action, telemetry.Result(err)).Inc()
	if err == nil {
		log.Debug("action done")
		return nil
	}

	if errors.Is(err, ErrValidation) {
		log.Info("action rejected", zap.Error(err))
	} else {
		log.Warn("action failed", zap.Error(err))
	}
	d.notifier.Notify(action, err)
	return err
}
