package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
)

// envelope is the message shape the browser editor sends into a room.
type envelope struct {
	User string `json:"user"`
	Code string `json:"code"`
}

// roomURL turns an http(s) server address into the websocket URL for room.
func roomURL(server, room string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parsing server address: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	base := strings.TrimSuffix(u.Path, "/")
	u.Path = base + "/ws/" + room
	u.RawPath = base + "/ws/" + url.PathEscape(room)
	return u.String(), nil
}

// maxPendingEchoes bounds the sent-payload set when the server does not
// echo to the sender.
const maxPendingEchoes = 256

// echoFilter remembers payloads this client sent so the server's echo of
// them can be hidden without hiding other participants.
type echoFilter struct {
	mu      sync.Mutex
	pending map[string]int
	total   int
}

func newEchoFilter() *echoFilter {
	return &echoFilter{pending: make(map[string]int)}
}

// Sent records an outgoing payload.
func (f *echoFilter) Sent(payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.total >= maxPendingEchoes {
		clear(f.pending)
		f.total = 0
	}
	f.pending[string(payload)]++
	f.total++
}

// Echo reports whether payload is the echo of one we sent, consuming it.
func (f *echoFilter) Echo(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(payload)
	n := f.pending[key]
	if n == 0 {
		return false
	}
	if n == 1 {
		delete(f.pending, key)
	} else {
		f.pending[key] = n - 1
	}
	f.total--
	return true
}

// formatIncoming renders a relayed payload.
func formatIncoming(data []byte) string {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.User == "" {
		return string(data)
	}
	return fmt.Sprintf("\033[32m%s>\033[0m %s", env.User, env.Code)
}

var extLanguages = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".mjs":  "javascript",
	".rb":   "ruby",
	".go":   "go",
	".cpp":  "cpp",
	".cc":   "cpp",
	".cxx":  "cpp",
	".java": "java",
}

func languageForFile(path string) (string, bool) {
	lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}
