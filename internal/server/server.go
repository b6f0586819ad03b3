// Package server serves the control panel: static files, the /ws hub and a
// small HTTP API over the action registry.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"magicband-controller/internal/actions"
	"magicband-controller/internal/core"
	"magicband-controller/internal/device"
	"magicband-controller/internal/dispatch"
	"magicband-controller/internal/palette"
	"magicband-controller/internal/scheduler"
)

// CommandHandler defines the interface for handling client commands.
type CommandHandler interface {
	Handle(msg Message, hub *Hub)
}

// StateProvider supplies what a freshly connected panel needs besides the
// panel inputs.
type StateProvider interface {
	ScriptList() ([]string, error)
	RunningScript() string
	Schedules() []scheduler.Entry
}

// Options configures a Server.
type Options struct {
	Port           string
	Static         http.FileSystem
	AllowedOrigins []string
	// Device, when set, mounts the band's /command endpoint and the captive
	// portal fallback on the same listener.
	Device *device.Handler
}

// Server manages the HTTP and WebSocket services.
type Server struct {
	Hub        *Hub
	handler    CommandHandler
	registry   *actions.Registry
	state      StateProvider
	router     *mux.Router
	httpServer *http.Server

	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewServer creates a new server instance.
func NewServer(registry *actions.Registry, state StateProvider, opts Options) *Server {
	hub := NewHub()
	go hub.Run()

	s := &Server{
		Hub:            hub,
		registry:       registry,
		state:          state,
		allowedOrigins: opts.AllowedOrigins,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/actions/{action}", s.handleAction).Methods(http.MethodPost)
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)

	var notFound http.Handler = http.NotFoundHandler()
	if opts.Device != nil {
		r.Use(device.CORS)
		opts.Device.Register(r)
		notFound = device.CORS(http.HandlerFunc(opts.Device.NotFound))
	}
	r.NotFoundHandler = notFound
	if opts.Static != nil {
		r.PathPrefix("/").Handler(staticHandler(opts.Static, notFound))
	}

	s.router = r
	s.httpServer = &http.Server{Addr: ":" + opts.Port, Handler: r}
	return s
}

// SetHandler sets the websocket command handler.
func (s *Server) SetHandler(h CommandHandler) {
	s.handler = h
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.Hub.Stop()
	return s.httpServer.Shutdown(ctx)
}

// checkOrigin accepts non-browser clients, the panel's own origin and the
// configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	log.Warn().Str("component", "server").Str("origin", origin).Msg("WebSocket connection blocked: origin not in allowed list")
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Str("component", "server").Err(err).Msg("WebSocket upgrade error")
		return
	}

	c := newClient(conn)
	for _, msg := range s.Snapshot() {
		c.queue(msg)
	}
	go c.writePump()

	if !s.Hub.join(c) {
		close(c.send)
		return
	}
	defer s.Hub.leave(c)

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if s.handler != nil {
			s.handler.Handle(Message{Raw: msgBytes}, s.Hub)
		}
	}
}

// Snapshot returns the messages that bring a new panel up to date.
func (s *Server) Snapshot() []Message {
	c := s.registry.Controller()
	msgs := []Message{
		NewMessage(TypePanelState, c.State().Clone()),
		NewMessage(TypeControls, Controls{Disabled: c.Pending()}),
	}
	if s.state == nil {
		return msgs
	}
	if scripts, err := s.state.ScriptList(); err == nil {
		msgs = append(msgs, NewMessage(TypeScriptList, scripts))
	}
	msgs = append(msgs,
		NewMessage(TypeScriptStatus, ScriptStatus{Running: s.state.RunningScript()}),
		NewMessage(TypeScheduleList, s.state.Schedules()),
	)
	return msgs
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "clients": s.Hub.Count()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	c := s.registry.Controller()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"inputs":  c.State().Clone(),
		"pending": c.Pending(),
	})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action := core.Action(mux.Vars(r)["action"])
	args, err := readArgs(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	text, err := s.registry.Run(r.Context(), action, args)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

// statusFor maps action errors onto HTTP status codes.
func statusFor(err error) int {
	var statusErr *dispatch.StatusError
	switch {
	case errors.Is(err, dispatch.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, actions.ErrUnknownAction):
		return http.StatusNotFound
	case errors.Is(err, actions.ErrMissingArg),
		errors.Is(err, actions.ErrEmptyManual),
		errors.Is(err, palette.ErrInvalidHex):
		return http.StatusBadRequest
	case errors.As(err, &statusErr):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// readArgs takes action arguments from a JSON object body or from the form
// and query string.
func readArgs(r *http.Request) (actions.Args, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var cmd Command
		if err := json.NewDecoder(r.Body).Decode(&cmd.Payload); err != nil {
			return nil, err
		}
		return cmd.Args(), nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	args := actions.Args{}
	for k := range r.Form {
		args[k] = r.Form.Get(k)
	}
	return args, nil
}

// staticHandler serves files from fs and hands missing paths to notFound.
func staticHandler(fs http.FileSystem, notFound http.Handler) http.Handler {
	files := http.FileServer(fs)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		if name != "/" {
			f, err := fs.Open(name)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					notFound.ServeHTTP(w, r)
					return
				}
			} else {
				f.Close()
			}
		}
		files.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
