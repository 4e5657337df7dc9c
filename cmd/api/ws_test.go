package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"repolens/internal/eventstream"
)

func dialWS(t *testing.T, httpURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestAnalyzeWebsocketStreamsTasks(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv.URL+"/api/analyze/ws?repo_url="+
		url.QueryEscape("https://github.com/octo/demo"))

	// Each text message is one JSON event; the server ends the stream with a
	// normal close frame once the run finishes.
	r := eventstream.NewReducer()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("stream ended abnormally: %v", err)
			}
			break
		}
		var ev eventstream.StreamEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("bad frame %q: %v", msg, err)
		}
		r.Apply(ev)
	}

	log := r.Log()
	if len(log) == 0 || log[0] != "connection established" {
		t.Fatalf("first event must establish the connection: %v", log)
	}
	if !strings.Contains(strings.Join(log, "\n"), "analysis complete") {
		t.Fatalf("missing completion notice:\n%s", strings.Join(log, "\n"))
	}
	tasks := r.Tasks()
	if len(tasks) != 5 {
		t.Fatalf("got %d tasks, want 5", len(tasks))
	}
	for _, task := range tasks {
		if task.Status != eventstream.StatusComplete {
			t.Fatalf("task %s not complete: %+v", task.ID, task)
		}
	}
}

func TestAnalyzeWebsocketRequiresRepoURL(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/analyze/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

// wsSink upgrades and discards everything so emitter tests have a live peer.
func wsSink(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWSEmitterEmitAfterClose(t *testing.T) {
	conn := dialWS(t, wsSink(t).URL)

	em := newWSEmitter(conn)
	if err := em.Emit(eventstream.System("hello")); err != nil {
		t.Fatalf("emit on live emitter: %v", err)
	}
	em.close()
	em.close() // idempotent
	if err := em.Emit(eventstream.System("too late")); err == nil {
		t.Fatal("emit after close must fail so producers stop")
	}
}
