package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"repolens/internal/analyze"
	"repolens/internal/eventstream"
	"repolens/internal/util/jsonutil"
)

const (
	analyzeWSWriteWait = 10 * time.Second
	analyzeWSPongWait  = 60 * time.Second
	analyzeWSPingEvery = (analyzeWSPongWait * 9) / 10
)

var analyzeWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// handleAnalyzeWS serves the same event stream over a websocket, one JSON
// event per text message: GET /api/analyze/ws?repo_url=...
func (s *apiServer) handleAnalyzeWS(w http.ResponseWriter, r *http.Request) {
	repoURL := strings.TrimSpace(r.URL.Query().Get("repo_url"))
	if repoURL == "" {
		http.Error(w, "repo_url is required", http.StatusBadRequest)
		return
	}
	token := firstNonEmpty(strings.TrimSpace(r.URL.Query().Get("token")), s.cfg.GitHubToken)

	conn, err := analyzeWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(analyzeWSPongWait)); err != nil {
		log.Printf("analyze ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(analyzeWSPongWait))
	})

	// Inbound frames are only pongs and close; a read error means the client
	// is gone, so cancel the pipeline.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	em := newWSEmitter(conn)
	defer em.close()

	if err := em.Emit(eventstream.System("connection established")); err != nil {
		return
	}
	if err := s.newAnalyzer().Run(ctx, analyze.Request{RepoURL: repoURL, Token: token}, em); err != nil {
		log.Printf("analyze ws stream ended early: %v", err)
	}
}

// wsEmitter funnels events through a single writer goroutine that also owns
// keepalive pings; gorilla connections do not allow concurrent writers. The
// events channel is never closed; quit signals shutdown so a straggling Emit
// gets an error instead of a send on a closed channel.
type wsEmitter struct {
	events    chan eventstream.StreamEvent
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newWSEmitter(conn *websocket.Conn) *wsEmitter {
	e := &wsEmitter{
		events: make(chan eventstream.StreamEvent, 32),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go e.writeLoop(conn)
	return e
}

func (e *wsEmitter) writeLoop(conn *websocket.Conn) {
	defer close(e.done)
	ticker := time.NewTicker(analyzeWSPingEvery)
	defer ticker.Stop()

	write := func(ev eventstream.StreamEvent) bool {
		b, err := jsonutil.MarshalNoEscape(ev)
		if err != nil {
			log.Printf("analyze ws encode %s event: %v", ev.Type, err)
			return true
		}
		_ = conn.SetWriteDeadline(time.Now().Add(analyzeWSWriteWait))
		return conn.WriteMessage(websocket.TextMessage, b) == nil
	}

	for {
		select {
		case ev := <-e.events:
			if !write(ev) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(analyzeWSWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-e.quit:
			// Drain what was emitted before shutdown, then say goodbye.
			for {
				select {
				case ev := <-e.events:
					if !write(ev) {
						return
					}
				default:
					_ = conn.SetWriteDeadline(time.Now().Add(analyzeWSWriteWait))
					_ = conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

func (e *wsEmitter) Emit(ev eventstream.StreamEvent) error {
	select {
	case <-e.quit:
		return errors.New("websocket closed")
	case <-e.done:
		return errors.New("websocket closed")
	default:
	}
	select {
	case e.events <- ev:
		return nil
	case <-e.quit:
		return errors.New("websocket closed")
	case <-e.done:
		return errors.New("websocket closed")
	}
}

// close drains the writer and sends the websocket close frame. Idempotent.
func (e *wsEmitter) close() {
	e.closeOnce.Do(func() {
		close(e.quit)
		<-e.done
	})
}
