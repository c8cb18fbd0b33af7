// Package testutil provides an in-process mock of the live timing feed for
// integration tests. No external server required.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message is one streamed feed update the mock server will deliver after a
// successful subscription. Payload is embedded verbatim into the wire frame
// and must be valid JSON (a quoted string for text payloads).
type Message struct {
	Topic   string
	Payload string
	Time    string
}

// Script describes what the mock server does with each connection.
type Script struct {
	// Reference is the initial snapshot returned in the subscribe reply,
	// topic to raw JSON payload. May be nil for servers with no snapshot.
	Reference map[string]string
	// Messages are streamed in order after the snapshot, one envelope each
	// with an incrementing cursor.
	Messages []Message
	// RawFrames are written verbatim after Messages, for exercising
	// duplicates, malformed frames, and keep-alives.
	RawFrames []string
	// DropAfter, when positive, abruptly closes the connection after that
	// many streamed messages, before RawFrames.
	DropAfter int
	// Silent accepts the websocket but never answers the subscribe
	// invocation.
	Silent bool
	// KeepAliveEvery, when positive, sends keep-alive frames at that
	// period even while Silent, for exercising clients that must not
	// treat keep-alives as a subscription acknowledgement.
	KeepAliveEvery time.Duration
	// MuteAfterReply stops all traffic after the subscribe reply and any
	// scripted frames, for exercising client idle detection.
	MuteAfterReply bool
}

// FeedServer is an httptest-backed mock of the negotiate/connect endpoints.
// Safe for concurrent use; each websocket connection gets its own goroutine.
type FeedServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu            sync.Mutex
	script        Script
	rejectAuth    bool
	failNegotiate int
	negotiations  int
	connections   int
	subscriptions [][]string
}

// NewFeedServer starts a mock feed serving the given script. Callers must
// Close it when done.
func NewFeedServer(script Script) *FeedServer {
	s := &FeedServer{script: script}
	mux := http.NewServeMux()
	mux.HandleFunc("/negotiate", s.handleNegotiate)
	mux.HandleFunc("/connect", s.handleConnect)
	s.srv = httptest.NewServer(mux)
	return s
}

// URL returns the server's base URL, suitable as a feed base URL.
func (s *FeedServer) URL() string { return s.srv.URL }

// Close shuts the server down.
func (s *FeedServer) Close() { s.srv.Close() }

// RejectAuth makes all subsequent negotiations answer 401.
func (s *FeedServer) RejectAuth() {
	s.mu.Lock()
	s.rejectAuth = true
	s.mu.Unlock()
}

// FailNegotiations makes the next n negotiation requests answer 500.
func (s *FeedServer) FailNegotiations(n int) {
	s.mu.Lock()
	s.failNegotiate = n
	s.mu.Unlock()
}

// SetScript replaces the script used for new connections.
func (s *FeedServer) SetScript(script Script) {
	s.mu.Lock()
	s.script = script
	s.mu.Unlock()
}

// Negotiations reports how many negotiation requests were received.
func (s *FeedServer) Negotiations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negotiations
}

// Connections reports how many websocket connections were accepted.
func (s *FeedServer) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// Subscriptions returns the topic list from each subscribe invocation
// received, in order.
func (s *FeedServer) Subscriptions() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.subscriptions))
	copy(out, s.subscriptions)
	return out
}

func (s *FeedServer) handleNegotiate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.negotiations++
	reject := s.rejectAuth
	fail := s.failNegotiate > 0
	if fail {
		s.failNegotiate--
	}
	n := s.negotiations
	s.mu.Unlock()

	if reject {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if fail {
		http.Error(w, "negotiation unavailable", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "GCLB", Value: "mock"})
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"ConnectionToken":"tok-%d","ConnectionId":"conn-%d","ProtocolVersion":"1.5","KeepAliveTimeout":20.0}`, n, n)
}

func (s *FeedServer) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("connectionToken") == "" {
		http.Error(w, "missing connection token", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.connections++
	script := s.script
	s.mu.Unlock()

	go s.serveConn(conn, script)
}

// subscribeInvocation mirrors the client's hub invocation shape.
type subscribeInvocation struct {
	Hub       string            `json:"H"`
	Method    string            `json:"M"`
	Arguments []json.RawMessage `json:"A"`
	ID        json.RawMessage   `json:"I"`
}

func (s *FeedServer) serveConn(conn *websocket.Conn, script Script) {
	defer conn.Close()

	inv, ok := s.awaitSubscribe(conn)
	if !ok {
		return
	}

	if script.Silent {
		// Keep reading so the client's subscribe timeout fires, not a
		// connection error.
		if script.KeepAliveEvery > 0 {
			go s.keepAlive(conn, script.KeepAliveEvery)
		}
		s.drain(conn)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, referenceReply(inv, script.Reference)); err != nil {
		return
	}

	for i, msg := range script.Messages {
		if script.DropAfter > 0 && i >= script.DropAfter {
			return
		}
		frame := fmt.Sprintf(`{"C":"d-mock,0|A,%d","M":[{"H":%q,"M":%q,"A":[%q,%s,%q]}]}`,
			i+1, inv.Hub, msg.Topic, msg.Topic, msg.Payload, msg.Time)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
	}
	if script.DropAfter > 0 && len(script.Messages) >= script.DropAfter {
		return
	}

	for _, frame := range script.RawFrames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
	}

	if script.MuteAfterReply {
		s.drain(conn)
		return
	}

	// Hold the connection open with keep-alives until the client leaves.
	go s.drain(conn)
	s.keepAlive(conn, 2*time.Second)
}

// keepAlive writes empty envelopes at the given period until a write
// fails.
func (s *FeedServer) keepAlive(conn *websocket.Conn, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for range ticker.C {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("{}")); err != nil {
			return
		}
	}
}

func (s *FeedServer) awaitSubscribe(conn *websocket.Conn) (*subscribeInvocation, bool) {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, false
		}
		var inv subscribeInvocation
		if err := json.Unmarshal(data, &inv); err != nil {
			continue
		}
		if !strings.EqualFold(inv.Method, "Subscribe") || len(inv.Arguments) == 0 {
			continue
		}
		var topics []string
		if err := json.Unmarshal(inv.Arguments[0], &topics); err != nil {
			continue
		}
		s.mu.Lock()
		s.subscriptions = append(s.subscriptions, topics)
		s.mu.Unlock()
		conn.SetReadDeadline(time.Time{})
		return &inv, true
	}
}

// drain consumes inbound frames, answering pings, until the peer closes.
func (s *FeedServer) drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func referenceReply(inv *subscribeInvocation, reference map[string]string) []byte {
	id := inv.ID
	if len(id) == 0 {
		id = json.RawMessage(`"1"`)
	}
	ref := map[string]json.RawMessage{}
	for topic, payload := range reference {
		ref[topic] = json.RawMessage(payload)
	}
	reply, _ := json.Marshal(map[string]any{"R": ref, "I": id})
	return reply
}
