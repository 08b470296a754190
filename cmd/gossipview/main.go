package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/ryandielhenn/gossipview/discovery"
	"github.com/ryandielhenn/gossipview/internal/config"
	"github.com/ryandielhenn/gossipview/internal/telemetry"
	"github.com/ryandielhenn/gossipview/pkg/action"
	"github.com/ryandielhenn/gossipview/pkg/session"
)

var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer logger.Sync()

	telemetry.SetBuildInfo(version, gitSHA)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Resolve the node through etcd when discovery is configured
	nodeAddr := cfg.NodeAddr
	var etcd *clientv3.Client
	if len(cfg.EtcdEndpoints) > 0 {
		logger.Info("creating etcd client", zap.Strings("endpoints", cfg.EtcdEndpoints))
		cli, err := discovery.NewClient(cfg.EtcdEndpoints)
		if err != nil {
			logger.Fatal("etcd client", zap.Error(err))
		}
		defer cli.Close()
		etcd = cli

		rctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		nodeAddr, err = discovery.ResolveNode(rctx, cli, cfg.NodeName)
		cancel()
		if err != nil {
			logger.Fatal("resolve node", zap.String("node", cfg.NodeName), zap.Error(err))
		}
		logger.Info("resolved node", zap.String("node", cfg.NodeName), zap.String("addr", nodeAddr))
	}

	// 2. Build the session and attach the terminal renderer
	out := newRenderer(os.Stdout)
	sess := session.New(session.Config{
		NodeAddr:          nodeAddr,
		PollInterval:      cfg.PollInterval,
		RequestTimeout:    cfg.RequestTimeout,
		SearchBudget:      cfg.SearchBudget,
		MergePrivateSends: cfg.MergePrivateSends,
		Notifier:          action.NotifierFunc(out.Alert),
		Logger:            logger,
	})
	out.Attach(sess)

	// 3. Follow the node if it re-registers under another address
	if etcd != nil {
		discovery.WatchNode(ctx, etcd, cfg.NodeName, logger, func(addr string) {
			sess.Rebind(ctx, addr)
		})
	}

	// 4. Optional metrics endpoint
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.MetricsHandler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	// 5. Identity, then one immediate cycle per channel and background polling
	if err := sess.LoadIdentity(ctx); err != nil {
		logger.Warn("could not load node identity", zap.Error(err))
	}
	out.Title(sess.Identity(), sess.Node.Addr())

	polled := make(chan struct{})
	go func() {
		defer close(polled)
		if err := sess.Run(ctx); err != nil {
			logger.Error("poller stopped", zap.Error(err))
		}
	}()

	// 6. Commands from stdin until EOF, /quit or a signal
	runCommands(ctx, os.Stdin, sess, out)
	stop()
	<-polled
}
