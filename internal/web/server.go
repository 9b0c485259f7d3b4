package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"turntable/internal/config"
	"turntable/internal/debug"
	"turntable/internal/logic/command"
)

// RestartFunc is invoked when the remote interface requests a reboot
// (directly or after saving settings).
type RestartFunc func()

// Server exposes the control pages, the settings API, and the
// WebSocket command/status channel.
type Server struct {
	addr        string
	broadcaster *Broadcaster
	commands    *command.Handler
	cfg         *config.Config
	cfgPath     string
	restart     RestartFunc
	upgrader    websocket.Upgrader
	staticFS    fs.FS
}

// NewServer creates a server configured for the given address and
// dependencies.
func NewServer(addr string, broadcaster *Broadcaster, commands *command.Handler, cfg *config.Config, cfgPath string, restart RestartFunc) *Server {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("web: failed to sub static fs: %v", err)
	}

	return &Server{
		addr:        addr,
		broadcaster: broadcaster,
		commands:    commands,
		cfg:         cfg,
		cfgPath:     cfgPath,
		restart:     restart,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // device lives on a trusted local network
			},
		},
		staticFS: subFS,
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("POST /api/settings", s.handlePostSettings)
	mux.HandleFunc("POST /api/reboot", s.handleReboot)
	mux.HandleFunc("GET /settings", s.servePage("settings.html"))
	mux.HandleFunc("GET /{$}", s.servePage("index.html")) // exact match for root only

	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// handleWebSocket upgrades the connection and runs the command/status
// exchange: every parsed command is followed by a broadcast, so all
// listeners see the effect immediately.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Error(err)
		return
	}
	debug.Info("Client connected to WebSocket")

	client := newClient(conn)
	s.broadcaster.Register(client)
	go client.writePump()

	// Initial status so the new client renders immediately.
	s.broadcaster.Broadcast()

	go func() {
		defer func() {
			s.broadcaster.Unregister(client)
			client.Close()
			debug.Info("Client disconnected")
		}()
		client.readPump(func(data []byte) {
			if err := s.commands.HandleRaw(data); err != nil {
				debug.Error(err)
				return
			}
			s.broadcaster.Broadcast()
		})
	}()
}

// handleGetSettings returns the live configuration.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.cfg); err != nil {
		debug.Error(err)
	}
}

// handlePostSettings persists new settings and schedules a restart;
// the device applies settings by starting over.
func (s *Server) handlePostSettings(w http.ResponseWriter, r *http.Request) {
	var newCfg config.Config
	if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error", "message": "Invalid data format: " + err.Error(),
		})
		return
	}

	if err := config.Save(s.cfgPath, &newCfg); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error", "message": "Failed to save settings to file.",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok", "message": "Settings saved. Restarting to apply all changes...",
	})
	s.scheduleRestart()
}

// handleReboot restarts the device on request.
func (s *Server) handleReboot(w http.ResponseWriter, r *http.Request) {
	debug.Info("Restart requested from web interface")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Restarting..."})
	s.scheduleRestart()
}

func (s *Server) scheduleRestart() {
	if s.restart == nil {
		return
	}
	// Give the response a moment to flush before tearing down.
	time.AfterFunc(time.Second, s.restart)
}

func (s *Server) servePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(s.staticFS, name)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Error(err)
	}
}
