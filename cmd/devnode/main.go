// Command devnode serves an in-memory Peerster node web API so the client can
// be exercised without a running gossiper. It seeds a few records and, when
// ETCD_ENDPOINTS is set, registers itself the way real nodes are discovered.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/gossipview/discovery"
	"github.com/ryandielhenn/gossipview/pkg/gossip"
	"github.com/ryandielhenn/gossipview/pkg/node/nodetest"
)

func main() {
	name := flag.String("name", "devnode", "node name")
	addr := flag.String("addr", ":8080", "listen address")
	advertise := flag.String("advertise", "127.0.0.1:8080", "address registered in etcd")
	chatter := flag.Duration("chatter", 3*time.Second, "interval between generated rumors (0 disables)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer logger.Sync()

	// 1. Initialize the node with some state to look at
	n := nodetest.New(*name)
	n.AddRumor("bob", "hello from bob")
	n.AddUser("bob", "127.0.0.1:5001")
	n.AddPeer("127.0.0.1:5001")
	n.Deliver("bob", "psst")
	n.AddSearchResult(gossip.SearchResult{Name: "cat.jpg", Hash: "c0ffee", Full: true})

	// 2. Register this node with etcd
	if v := os.Getenv("ETCD_ENDPOINTS"); v != "" {
		cli, err := discovery.NewClient(strings.Split(v, ","))
		if err != nil {
			logger.Fatal("etcd client", zap.Error(err))
		}
		defer cli.Close()

		logger.Info("registering with etcd", zap.String("name", *name), zap.String("addr", *advertise))
		leaseID, cancel, err := discovery.RegisterNode(cli, *name, *advertise, 10)
		if err != nil {
			logger.Fatal("register node", zap.Error(err))
		}
		defer func() {
			cancel()
			_, _ = cli.Revoke(context.TODO(), leaseID)
		}()
	}

	// 3. Keep some rumor traffic going
	if *chatter > 0 {
		go func() {
			for i := 1; ; i++ {
				time.Sleep(*chatter)
				n.AddRumor("bob", fmt.Sprintf("tick %d", i))
			}
		}()
	}

	// 4. Serve the web API
	logger.Info("devnode listening", zap.String("name", *name), zap.String("addr", *addr))
	if err := http.ListenAndServe(*addr, n.Handler()); err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
}
