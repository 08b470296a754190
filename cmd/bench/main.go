package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ryandielhenn/gossipview/pkg/gossip"
	"github.com/ryandielhenn/gossipview/pkg/node"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "node web address")
	n := flag.Int("n", 1000, "rumors to post")
	conc := flag.Int("c", 16, "concurrency")
	flag.Parse()

	client := node.NewClient(*addr, 5*time.Second, nil)
	ctx := context.Background()

	var failed atomic.Int64
	wg := sync.WaitGroup{}
	start := time.Now()
	ch := make(chan int, *conc)

	for i := 0; i < *n; i++ {
		wg.Add(1)
		ch <- 1
		go func(i int) {
			defer wg.Done()
			defer func() { <-ch }()
			if _, err := client.PostRumor(ctx, fmt.Sprintf("bench %d", i), gossip.StatusVector{}); err != nil {
				failed.Add(1)
			}
		}(i)
	}
	wg.Wait()
	dur := time.Since(start)

	batch, err := client.FetchRumors(ctx, gossip.StatusVector{})
	if err != nil {
		fmt.Println("final fetch failed:", err)
	} else {
		fmt.Printf("node now holds %d rumors from %d origins\n", len(batch.Rumors), len(batch.Statuses))
	}
	fmt.Printf("Completed %d posts (%d failed) in %s (%.2f ops/s)\n", *n, failed.Load(), dur, float64(*n)/dur.Seconds())
}
