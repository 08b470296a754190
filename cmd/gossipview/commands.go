package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ryandielhenn/gossipview/pkg/gossip"
	"github.com/ryandielhenn/gossipview/pkg/session"
)

const usage = `commands:
  TEXT                         post a rumor
  /peer ADDR                   add a peer (A.B.C.D:PPPP)
  /pm DEST TEXT                send a private message
  /upload NAME                 share a file from the node's shared directory
  /download NAME HASH [DEST]   download a file, from DEST or the network
  /search KEYWORDS [BUDGET]    search the network (comma-separated keywords)
  /peers /users /files /results /private /status
  /help /quit`

type command struct {
	name string
	args []string
	rest string
}

// parseCommand splits a line into a command. Plain text becomes "post".
func parseCommand(line string) (command, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "/") {
		return command{name: "post", rest: line}, nil
	}

	fields := strings.Fields(line)
	cmd := command{name: strings.TrimPrefix(fields[0], "/"), args: fields[1:]}

	switch cmd.name {
	case "peer", "upload":
		if len(cmd.args) != 1 {
			return command{}, fmt.Errorf("usage: /%s %s", cmd.name, map[string]string{"peer": "ADDR", "upload": "NAME"}[cmd.name])
		}
	case "pm":
		if len(cmd.args) < 2 {
			return command{}, fmt.Errorf("usage: /pm DEST TEXT")
		}
		// keep the message text as typed
		rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
		cmd.rest = strings.TrimSpace(strings.TrimPrefix(rest, cmd.args[0]))
	case "download":
		if len(cmd.args) < 2 || len(cmd.args) > 3 {
			return command{}, fmt.Errorf("usage: /download NAME HASH [DEST]")
		}
	case "search":
		if len(cmd.args) < 1 || len(cmd.args) > 2 {
			return command{}, fmt.Errorf("usage: /search KEYWORDS [BUDGET]")
		}
		if len(cmd.args) == 2 {
			if _, err := strconv.ParseUint(cmd.args[1], 10, 64); err != nil {
				return command{}, fmt.Errorf("invalid budget %q", cmd.args[1])
			}
		}
	case "peers", "users", "files", "results", "private", "status", "help", "quit":
	default:
		return command{}, fmt.Errorf("unknown command /%s (try /help)", cmd.name)
	}
	return cmd, nil
}

// execute runs cmd and reports whether the loop should stop. Action failures
// already reach the user through the session notifier.
func execute(ctx context.Context, cmd command, s *session.Session, out *renderer) bool {
	acts := s.Actions
	switch cmd.name {
	case "post":
		_ = acts.PostMessage(ctx, cmd.rest)
	case "peer":
		_ = acts.AddPeer(ctx, cmd.args[0])
	case "pm":
		_ = acts.PostPrivateMessage(ctx, cmd.rest, cmd.args[0])
	case "upload":
		_ = acts.UploadFile(ctx, cmd.args[0])
	case "download":
		dest := ""
		if len(cmd.args) == 3 {
			dest = cmd.args[2]
		}
		_ = acts.DownloadFile(ctx, cmd.args[0], cmd.args[1], dest)
	case "search":
		var budget uint64
		if len(cmd.args) == 2 {
			budget, _ = strconv.ParseUint(cmd.args[1], 10, 64)
		}
		_ = acts.Search(ctx, cmd.args[0], budget)
	case "peers":
		List(out, "peers", s.Peers.Items(), func(p gossip.Peer) string { return p.Address })
	case "users":
		List(out, "users", s.Users.Items(), func(u gossip.User) string { return u.Name + " " + u.Address })
	case "files":
		List(out, "files", s.Files.Items(), func(f gossip.File) string { return f.Name + " " + f.Hash })
	case "results":
		List(out, "search results", s.Results.Items(), func(r gossip.SearchResult) string {
			return fmt.Sprintf("%s %s full=%t", r.Name, r.Hash, r.Full)
		})
	case "private":
		List(out, "private messages", s.Private.Items(), func(m gossip.PrivateMessage) string {
			return m.Origin + " -> " + m.Destination + ": " + m.Text
		})
	case "status":
		List(out, "status", s.Rumors.Cursor().Statuses(), func(p gossip.PeerStatus) string {
			return fmt.Sprintf("%s next=%d", p.Identifier, p.NextID)
		})
	case "help":
		out.printf("%s\n", usage)
	case "quit":
		return true
	}
	return false
}

// runCommands reads lines from in until EOF, /quit or ctx is done.
func runCommands(ctx context.Context, in io.Reader, s *session.Session, out *renderer) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			cmd, err := parseCommand(line)
			if err != nil {
				out.printf("! %v\n", err)
				continue
			}
			if execute(ctx, cmd, s, out) {
				return
			}
		}
	}
}
