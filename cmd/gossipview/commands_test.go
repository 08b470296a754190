package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ryandielhenn/gossipview/pkg/action"
	"github.com/ryandielhenn/gossipview/pkg/node/nodetest"
	"github.com/ryandielhenn/gossipview/pkg/session"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		name string
		args []string
		rest string
		bad  bool
	}{
		{line: "hello world", name: "post", rest: "hello world"},
		{line: "", name: "post"},
		{line: "/peer 127.0.0.1:5000", name: "peer", args: []string{"127.0.0.1:5000"}},
		{line: "/peer", bad: true},
		{line: "/pm bob  hi  there", name: "pm", args: []string{"bob", "hi", "there"}, rest: "hi  there"},
		{line: "/pm bob", bad: true},
		{line: "/download a.txt beef", name: "download", args: []string{"a.txt", "beef"}},
		{line: "/download a.txt beef carol extra", bad: true},
		{line: "/search cat,dog 8", name: "search", args: []string{"cat,dog", "8"}},
		{line: "/search cat many", bad: true},
		{line: "/files", name: "files", args: []string{}},
		{line: "/nope", bad: true},
	}
	for _, c := range cases {
		cmd, err := parseCommand(c.line)
		if c.bad {
			if err == nil {
				t.Fatalf("parseCommand(%q) = %+v, want error", c.line, cmd)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseCommand(%q) error: %v", c.line, err)
		}
		if cmd.name != c.name || cmd.rest != c.rest {
			t.Fatalf("parseCommand(%q) = %+v, want name=%q rest=%q", c.line, cmd, c.name, c.rest)
		}
		if c.args != nil && strings.Join(cmd.args, "|") != strings.Join(c.args, "|") {
			t.Fatalf("parseCommand(%q) args = %v, want %v", c.line, cmd.args, c.args)
		}
	}
}

func TestRunCommands(t *testing.T) {
	n := nodetest.New("alice")
	srv := httptest.NewServer(n.Handler())
	defer srv.Close()

	var buf bytes.Buffer
	out := newRenderer(&buf)
	s := session.New(session.Config{
		NodeAddr:       srv.URL,
		RequestTimeout: time.Second,
		Notifier:       action.NotifierFunc(out.Alert),
	})
	out.Attach(s)

	input := strings.Join([]string{
		"hello",
		"/peer 127.0.0.1:5000",
		"/peer 300.0.0.1:5000",
		"/upload a.txt",
		"/bogus",
		"/peers",
		"/quit",
		"never read",
	}, "\n")
	runCommands(context.Background(), strings.NewReader(input), s, out)

	got := buf.String()
	require.Contains(t, got, "alice: hello")
	require.Contains(t, got, "+ peer 127.0.0.1:5000")
	require.Contains(t, got, "! add_peer: invalid peer address")
	require.Contains(t, got, "+ file a.txt")
	require.Contains(t, got, "unknown command /bogus")
	require.Contains(t, got, "-- peers (1)")
	require.Equal(t, 1, n.Requests("POST /message"))
}
