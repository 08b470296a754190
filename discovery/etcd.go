// Package discovery publishes and looks up Peerster node web addresses in etcd.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// Prefix is where node addresses live, one key per node name.
const Prefix = "/peerster/nodes/"

var ErrNodeNotFound = errors.New("node not registered")

func NewClient(endpoints []string) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
}

func NodeKey(name string) string {
	return Prefix + name
}

// RegisterNode stores addr under name with a lease of ttl seconds and keeps
// the lease alive until cancel is called.
func RegisterNode(cli *clientv3.Client, name, addr string, ttl int64) (clientv3.LeaseID, context.CancelFunc, error) {
	lease, err := cli.Grant(context.TODO(), ttl)
	if err != nil {
		return 0, nil, err
	}
	if _, err := cli.Put(context.TODO(), NodeKey(name), addr, clientv3.WithLease(lease.ID)); err != nil {
		return 0, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := cli.KeepAlive(ctx, lease.ID)
	if err != nil {
		cancel()
		return 0, nil, err
	}
	go func() {
		for range ch {
		}
	}()

	return lease.ID, cancel, nil
}

// ResolveNode returns the address registered for name.
func ResolveNode(ctx context.Context, cli *clientv3.Client, name string) (string, error) {
	resp, err := cli.Get(ctx, NodeKey(name))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	if len(resp.Kvs) == 0 {
		return "", fmt.Errorf("resolve %s: %w", name, ErrNodeNotFound)
	}
	return string(resp.Kvs[0].Value), nil
}

// WatchNode calls fn with every new address registered for name until ctx
// is done. Deregistration is logged and otherwise ignored: the last known
// address stays in use.
func WatchNode(ctx context.Context, cli *clientv3.Client, name string, logger *zap.Logger, fn func(addr string)) {
	if logger == nil {
		logger = zap.NewNop()
	}
	go followNode(cli.Watch(ctx, NodeKey(name)), name, logger, fn)
}

// followNode drains wch until it is closed, handing every PUT value to fn.
func followNode(wch clientv3.WatchChan, name string, logger *zap.Logger, fn func(addr string)) {
	for resp := range wch {
		if err := resp.Err(); err != nil {
			logger.Warn("node watch error", zap.String("node", name), zap.Error(err))
			continue
		}
		for _, ev := range resp.Events {
			switch ev.Type {
			case mvccpb.PUT:
				fn(string(ev.Kv.Value))
			case mvccpb.DELETE:
				logger.Warn("node deregistered, keeping last address", zap.String("node", name))
			}
		}
	}
}
