package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/events"
)

const heartbeatInterval = 30 * time.Second

type eventSource interface {
	Subscribe() chan events.ExecutionEvent
	Unsubscribe(ch chan events.ExecutionEvent)
}

// Server exposes execution events as an SSE stream plus a health probe.
type Server struct {
	Addr      string
	Events    eventSource
	logger    *zap.Logger
	heartbeat time.Duration
}

// NewServer creates a new web server instance.
func NewServer(addr string, source eventSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Events: source, logger: logger, heartbeat: heartbeatInterval}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/events/stream", s.handleEventStream)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("status server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.Events == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "event source not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := s.Events.Subscribe()
	defer s.Events.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// send a comment heartbeat so proxies keep connection
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case e, ok := <-sub:
			if !ok {
				return
			}
			payload, err := json.Marshal(e)
			if err != nil {
				s.logger.Error("failed to encode execution event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\n", e.Kind)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Arbiter</title>
  <style>
    body { margin:2rem; font-family:'Space Mono','JetBrains Mono',monospace; color:#111; }
    table { border-collapse:collapse; width:100%; }
    th, td { border-bottom:1px solid #ddd; padding:.4rem .6rem; text-align:left; font-size:.85rem; }
    .execute { color:#0a7a2f; } .alert { color:#b00020; } .failed { color:#b00020; } .done { color:#0a7a2f; }
  </style>
</head>
<body>
  <h1>Arbiter</h1>
  <table>
    <thead><tr><th>time</th><th>kind</th><th>pair</th><th>buy</th><th>sell</th><th>state / decision</th><th>net profit</th><th>message</th></tr></thead>
    <tbody id="rows"></tbody>
  </table>
  <script>
    const rows = document.getElementById('rows');
    const src = new EventSource('/events/stream');
    const add = (ev) => {
      const e = JSON.parse(ev.data);
      const tr = document.createElement('tr');
      const status = e.state || e.decision || '';
      tr.className = status;
      [new Date(e.ts).toLocaleTimeString(), e.kind, e.pair, e.buy_venue, e.sell_venue, status, e.net_profit || '', e.message || '']
        .forEach((v) => { const td = document.createElement('td'); td.textContent = v || ''; tr.appendChild(td); });
      rows.prepend(tr);
      while (rows.children.length > 200) rows.removeChild(rows.lastChild);
    };
    src.addEventListener('tick', add);
    src.addEventListener('transition', add);
  </script>
</body>
</html>
`
