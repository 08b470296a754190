package node

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/gossipview/internal/telemetry"
	"github.com/ryandielhenn/gossipview/pkg/gossip"
)

// DefaultTimeout bounds a single request when the client is built without one.
const DefaultTimeout = 5 * time.Second

// Client talks to the web API of one Peerster node.
type Client struct {
	mu     sync.RWMutex
	addr   string
	http   *http.Client
	logger *zap.Logger
}

func NewClient(addr string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		addr: NormalizeHostPort(addr, DefaultPort),
		http: &http.Client{
			Timeout:   timeout,
			Transport: telemetry.InstrumentTransport(nil, opLabel),
		},
		logger: logger.Named("node"),
	}
}

// SetAddr points the client at another node. Requests already issued keep
// their original target.
func (c *Client) SetAddr(addr string) {
	addr = NormalizeHostPort(addr, DefaultPort)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.addr != addr {
		c.logger.Info("node address changed", zap.String("from", c.addr), zap.String("to", addr))
	}
	c.addr = addr
}

func (c *Client) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr
}

// Identity returns the node's display name.
func (c *Client) Identity(ctx context.Context) (string, error) {
	var name string
	err := c.call(ctx, "identity", http.MethodGet, "/id", nil, nil, &name)
	return name, err
}

// FetchRumors returns the rumors the node has beyond sv together with the
// node's current status vector.
func (c *Client) FetchRumors(ctx context.Context, sv gossip.StatusVector) (gossip.RumorBatch, error) {
	h, err := statusHeader(sv)
	if err != nil {
		return gossip.RumorBatch{}, err
	}
	var body RumorsAndStatuses
	if err := c.call(ctx, "fetch rumors", http.MethodGet, "/message", h, nil, &body); err != nil {
		return gossip.RumorBatch{}, err
	}
	return body.batch(), nil
}

// PostRumor publishes text and answers like FetchRumors.
func (c *Client) PostRumor(ctx context.Context, text string, sv gossip.StatusVector) (gossip.RumorBatch, error) {
	h, err := statusHeader(sv)
	if err != nil {
		return gossip.RumorBatch{}, err
	}
	var body RumorsAndStatuses
	if err := c.call(ctx, "post rumor", http.MethodPost, "/message", h, text, &body); err != nil {
		return gossip.RumorBatch{}, err
	}
	return body.batch(), nil
}

func (c *Client) FetchPeers(ctx context.Context) ([]gossip.Peer, error) {
	var addrs []string
	if err := c.call(ctx, "fetch peers", http.MethodGet, "/node", nil, nil, &addrs); err != nil {
		return nil, err
	}
	peers := make([]gossip.Peer, 0, len(addrs))
	for _, a := range addrs {
		peers = append(peers, gossip.Peer{Address: a})
	}
	return peers, nil
}

// AddPeer asks the node to gossip with addr. added is false when the node
// already knew the peer.
func (c *Client) AddPeer(ctx context.Context, addr string) (peer gossip.Peer, added bool, err error) {
	var echoed string
	if err := c.call(ctx, "add peer", http.MethodPost, "/node", nil, addr, &echoed); err != nil {
		return gossip.Peer{}, false, err
	}
	if echoed == "" {
		return gossip.Peer{Address: addr}, false, nil
	}
	return gossip.Peer{Address: echoed}, true, nil
}

func (c *Client) FetchUsers(ctx context.Context) ([]gossip.User, error) {
	var body []User
	if err := c.call(ctx, "fetch users", http.MethodGet, "/user", nil, nil, &body); err != nil {
		return nil, err
	}
	users := make([]gossip.User, 0, len(body))
	for _, u := range body {
		users = append(users, gossip.User{Name: u.Name, Address: u.Address})
	}
	return users, nil
}

// FetchPrivateMessages returns the node's private messages starting at offset.
func (c *Client) FetchPrivateMessages(ctx context.Context, offset int) ([]gossip.PrivateMessage, error) {
	h := http.Header{}
	h.Set(HeaderIndex, strconv.Itoa(offset))
	var body []PrivateMessage
	if err := c.call(ctx, "fetch private messages", http.MethodGet, "/privateMessage", h, nil, &body); err != nil {
		return nil, err
	}
	msgs := make([]gossip.PrivateMessage, 0, len(body))
	for _, m := range body {
		msgs = append(msgs, m.entity())
	}
	return msgs, nil
}

// PostPrivateMessage sends text to destination. The node may or may not echo
// the message back; the result is nil when it does not.
func (c *Client) PostPrivateMessage(ctx context.Context, text, destination string) (*gossip.PrivateMessage, error) {
	var body PrivateMessage
	ok, err := c.callOptional(ctx, "post private message", http.MethodPost, "/privateMessage",
		MessageRequest{Destination: destination, Text: text}, &body)
	if err != nil || !ok {
		return nil, err
	}
	m := body.entity()
	return &m, nil
}

func (c *Client) FetchFiles(ctx context.Context) ([]gossip.File, error) {
	var files []gossip.File
	err := c.call(ctx, "fetch files", http.MethodGet, "/fileUpload", nil, nil, &files)
	return files, err
}

// UploadFile asks the node to index the file called name in its shared
// directory.
func (c *Client) UploadFile(ctx context.Context, name string) (gossip.File, error) {
	var f gossip.File
	err := c.call(ctx, "upload file", http.MethodPost, "/fileUpload", nil, name, &f)
	return f, err
}

// DownloadFile starts a download of hash under name, from destination when
// given and from the whole network otherwise. The result is nil when the node
// does not describe the file in its answer.
func (c *Client) DownloadFile(ctx context.Context, name, hash, destination string) (*gossip.File, error) {
	var f gossip.File
	ok, err := c.callOptional(ctx, "download file", http.MethodPost, "/fileDownload",
		FileRequest{Name: name, Destination: destination, Hash: hash}, &f)
	if err != nil || !ok {
		return nil, err
	}
	return &f, nil
}

// Search starts a file search. Results are read later with FetchSearchResults.
func (c *Client) Search(ctx context.Context, keywords string, budget uint64) error {
	_, err := c.callOptional(ctx, "search", http.MethodPost, "/fileSearch",
		SearchRequest{Keywords: keywords, Budget: budget}, nil)
	return err
}

func (c *Client) FetchSearchResults(ctx context.Context) ([]gossip.SearchResult, error) {
	var results []gossip.SearchResult
	err := c.call(ctx, "fetch search results", http.MethodGet, "/fileSearch", nil, nil, &results)
	return results, err
}

// call performs a request whose answer must decode into out.
func (c *Client) call(ctx context.Context, op, method, path string, header http.Header, in, out any) error {
	raw, err := c.do(ctx, op, method, path, header, in)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return &ProtocolError{Op: op, Err: errors.New("empty body")}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProtocolError{Op: op, Err: err}
	}
	return nil
}

// callOptional is call for endpoints that may answer with an empty body.
func (c *Client) callOptional(ctx context.Context, op, method, path string, in, out any) (bool, error) {
	raw, err := c.do(ctx, op, method, path, nil, in)
	if err != nil {
		return false, err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, &ProtocolError{Op: op, Err: err}
	}
	return true, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, header http.Header, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	target := "http://" + c.Addr() + path
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("op", op), zap.String("url", target), zap.Error(err))
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(errorText(raw))}
	}
	return raw, nil
}

func statusHeader(sv gossip.StatusVector) (http.Header, error) {
	data, err := json.Marshal(sv.Statuses())
	if err != nil {
		return nil, fmt.Errorf("encode statuses: %w", err)
	}
	h := http.Header{}
	h.Set(HeaderStatuses, string(data))
	return h, nil
}

// errorText extracts the node's message from an error body, which is either a
// JSON string or plain text.
func errorText(raw []byte) string {
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
		return msg
	}
	if s := string(bytes.TrimSpace(raw)); s != "" {
		return s
	}
	return "request rejected"
}
