package nodetest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/ryandielhenn/gossipview/pkg/gossip"
	"github.com/ryandielhenn/gossipview/pkg/node"
)

// Handler routes the node's web API.
func (n *Node) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/id", n.middleware(n.ID))
	mux.HandleFunc("/message", n.middleware(n.Message))
	mux.HandleFunc("/node", n.middleware(n.Peers))
	mux.HandleFunc("/user", n.middleware(n.Users))
	mux.HandleFunc("/privateMessage", n.middleware(n.PrivateMessage))
	mux.HandleFunc("/fileUpload", n.middleware(n.FileUpload))
	mux.HandleFunc("/fileDownload", n.middleware(n.FileDownload))
	mux.HandleFunc("/fileSearch", n.middleware(n.FileSearch))
	return mux
}

func (n *Node) middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		n.requests[r.Method+" "+r.URL.Path]++
		fail := n.fail
		n.mu.Unlock()

		if fail != nil {
			if status := fail(r.Method, r.URL.Path); status != 0 {
				writeJSON(w, status, "injected failure")
				return
			}
		}
		next(w, r)
	}
}

// ID writes the node name as a JSON string.
func (n *Node) ID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, n.name)
}

// Message lists rumors past the x-statuses vector and, on POST, first
// publishes the body as a new rumor from this node.
func (n *Node) Message(w http.ResponseWriter, r *http.Request) {
	var theirs []gossip.PeerStatus
	if err := json.Unmarshal([]byte(r.Header.Get(node.HeaderStatuses)), &theirs); err != nil {
		writeJSON(w, http.StatusBadRequest, "Error decoding 'x-statuses' parameter")
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		var text string
		if err := json.NewDecoder(r.Body).Decode(&text); err != nil {
			writeJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		n.addRumorLocked(n.name, text)
		writeJSON(w, http.StatusOK, n.rumorsSince(theirs))
	case http.MethodGet:
		writeJSON(w, http.StatusOK, n.rumorsSince(theirs))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Peers lists peers or adds one; adding a known peer echoes "".
func (n *Node) Peers(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		var peer string
		if err := json.NewDecoder(r.Body).Decode(&peer); err != nil || peer == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if slices.Contains(n.peers, peer) {
			writeJSON(w, http.StatusOK, "")
			return
		}
		n.peers = append(n.peers, peer)
		writeJSON(w, http.StatusOK, peer)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, append([]string{}, n.peers...))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (n *Node) Users(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	writeJSON(w, http.StatusOK, append([]node.User{}, n.users...))
}

// PrivateMessage lists messages from the x-index offset or sends one.
func (n *Node) PrivateMessage(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		var req node.MessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		m := node.PrivateMessage{Origin: n.name, Text: req.Text, Destination: req.Destination, HopLimit: 10}
		n.privates = append(n.privates, m)
		if n.echoPrivate {
			writeJSON(w, http.StatusOK, m)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		index, err := strconv.Atoi(r.Header.Get(node.HeaderIndex))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, "Error decoding 'x-index' parameter")
			return
		}
		if index < 0 {
			writeJSON(w, http.StatusBadRequest, "Index should be bigger or equal to 0.")
			return
		}
		body := []node.PrivateMessage{}
		if index < len(n.privates) {
			body = append(body, n.privates[index:]...)
		}
		writeJSON(w, http.StatusOK, body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// FileUpload lists indexed files or indexes a new one.
func (n *Node) FileUpload(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		var name string
		if err := json.NewDecoder(r.Body).Decode(&name); err != nil || name == "" {
			writeJSON(w, http.StatusBadRequest, "missing file name")
			return
		}
		sum := sha256.Sum256([]byte(name))
		f := gossip.File{Name: name, Hash: hex.EncodeToString(sum[:])}
		n.files = append(n.files, f)
		writeJSON(w, http.StatusOK, f)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, append([]gossip.File{}, n.files...))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (n *Node) FileDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req node.FileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := hex.DecodeString(req.Hash); err != nil || req.Hash == "" {
		writeJSON(w, http.StatusBadRequest, "invalid hash")
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	f := gossip.File{Name: req.Name, Hash: req.Hash}
	n.files = append(n.files, f)
	if n.echoDownload {
		writeJSON(w, http.StatusOK, f)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// FileSearch records a search or lists the results known so far.
func (n *Node) FileSearch(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		var req node.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Keywords == "" {
			writeJSON(w, http.StatusBadRequest, "no keywords")
			return
		}
		n.searches = append(n.searches, req)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, append([]gossip.SearchResult{}, n.results...))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
