package gqlws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gows "github.com/gorilla/websocket"
)

// testServer is a small graphql-ws server.
//
// Queries are answered with one data frame echoing their variables, or with an
// error frame when the query mentions "fail". Subscriptions mentioning "ticks"
// send three data frames and complete. One mentioning "failing" sends a data
// frame and then an error frame; one mentioning "drop" sends a data frame and
// closes the connection without a close frame. Any other subscription streams
// until it is stopped. connection_init carrying the header Authorization=deny is
// refused.
type testServer struct {
	*httptest.Server

	mu       sync.Mutex
	received []string
	header   http.Header
}

type serverFrame struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s := &testServer{}
	upgrader := gows.Upgrader{Subprotocols: []string{Subprotocol}}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.header = r.Header.Clone()
		s.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		s.serve(conn)
	}))

	t.Cleanup(s.Close)

	return s
}

func (s *testServer) url() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *testServer) count(typ string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	for _, r := range s.received {
		if r == typ {
			n++
		}
	}

	return n
}

func (s *testServer) upgradeHeader() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.header
}

func (s *testServer) serve(conn *gows.Conn) {
	stopped := make(map[string]chan struct{})

	defer func() {
		for _, stop := range stopped {
			close(stop)
		}
	}()

	var wmu sync.Mutex

	write := func(f serverFrame) {
		wmu.Lock()
		defer wmu.Unlock()

		_ = conn.WriteJSON(f)
	}

	for {
		var f serverFrame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}

		s.mu.Lock()
		s.received = append(s.received, f.Type)
		s.mu.Unlock()

		switch f.Type {
		case "connection_init":
			var init struct {
				Headers map[string]string `json:"headers"`
			}

			_ = json.Unmarshal(f.Payload, &init)

			if init.Headers["Authorization"] == "deny" {
				write(serverFrame{Type: "connection_error", Payload: json.RawMessage(`{"message":"denied"}`)})
			} else {
				write(serverFrame{Type: "connection_ack"})
			}

		case "start":
			var op struct {
				Query     string          `json:"query"`
				Variables json.RawMessage `json:"variables"`
			}

			_ = json.Unmarshal(f.Payload, &op)

			switch {
			case strings.HasPrefix(op.Query, "subscription") && strings.Contains(op.Query, "ticks"):
				for i := range 3 {
					write(serverFrame{ID: f.ID, Type: "data", Payload: fmt.Appendf(nil, `{"data":{"tick":%d}}`, i)})
				}

				write(serverFrame{ID: f.ID, Type: "complete"})

			case strings.HasPrefix(op.Query, "subscription") && strings.Contains(op.Query, "failing"):
				write(serverFrame{ID: f.ID, Type: "data", Payload: json.RawMessage(`{"data":{"tick":0}}`)})
				write(serverFrame{ID: f.ID, Type: "error", Payload: json.RawMessage(`{"message":"upstream gone"}`)})

			case strings.HasPrefix(op.Query, "subscription") && strings.Contains(op.Query, "drop"):
				write(serverFrame{ID: f.ID, Type: "data", Payload: json.RawMessage(`{"data":{"tick":0}}`)})

				return

			case strings.HasPrefix(op.Query, "subscription"):
				stop := make(chan struct{})
				stopped[f.ID] = stop

				go func(id string) {
					for i := 0; ; i++ {
						select {
						case <-stop:
							return
						default:
						}

						write(serverFrame{ID: id, Type: "data", Payload: fmt.Appendf(nil, `{"data":{"n":%d}}`, i)})
						time.Sleep(time.Millisecond)
					}
				}(f.ID)

			case strings.Contains(op.Query, "fail"):
				write(serverFrame{ID: f.ID, Type: "error", Payload: json.RawMessage(`{"message":"boom"}`)})

			default:
				vars := op.Variables
				if len(vars) == 0 {
					vars = json.RawMessage(`null`)
				}

				write(serverFrame{ID: f.ID, Type: "data", Payload: fmt.Appendf(nil, `{"data":{"echo":%s}}`, vars)})
			}

		case "stop":
			if stop, ok := stopped[f.ID]; ok {
				close(stop)
				delete(stopped, f.ID)
			}

			write(serverFrame{ID: f.ID, Type: "complete"})

		case "connection_terminate":
			return
		}
	}
}
