// Package device serves the band broadcaster's HTTP surface: the /command
// endpoint, CORS headers and the captive portal fallback.
package device

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Broadcaster takes encoded packets for the radio.
type Broadcaster interface {
	Broadcast(packet []byte) error
}

// captiveHosts are the connectivity checks phones and laptops run after
// joining the access point.
var captiveHosts = []string{
	"clients3.google.com",
	"captive.apple.com",
	"connectivitycheck.gstatic.com",
}

// Handler implements the band's command endpoint.
type Handler struct {
	broadcaster Broadcaster
	apAddress   string
	static      http.FileSystem
}

// NewHandler creates a handler. apAddress is where captive portal checks are
// redirected to; static serves index.html for unknown paths and may be nil.
func NewHandler(b Broadcaster, apAddress string, static http.FileSystem) *Handler {
	return &Handler{broadcaster: b, apAddress: apAddress, static: static}
}

// Register mounts /command on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/command", h.handleCommand).Methods(http.MethodPost)
	r.HandleFunc("/command", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodOptions)
}

// CORS sets the permissive headers the panel needs when it is opened from
// another origin, e.g. through a captive portal.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad form", http.StatusBadRequest)
		return
	}
	if !r.PostForm.Has("action") {
		writeText(w, http.StatusBadRequest, "Missing action")
		return
	}
	action := r.PostForm.Get("action")

	log.Info().
		Str("component", "device").
		Str("action", action).
		Int("vib", intParam(r.PostForm, "vib", 0)).
		Msg("Command")

	if packet := Packet(action, r.PostForm); packet != nil {
		if err := h.broadcaster.Broadcast(packet); err != nil {
			writeText(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeText(w, http.StatusOK, "OK")
}

// NotFound redirects captive portal probes to the access point and serves
// the panel's index.html for everything else.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	for _, host := range captiveHosts {
		if strings.Contains(r.Host, host) {
			http.Redirect(w, r, "http://"+h.apAddress, http.StatusFound)
			return
		}
	}

	if h.static == nil {
		http.NotFound(w, r)
		return
	}
	f, err := h.static.Open("/index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	http.ServeContent(w, r, "index.html", stat.ModTime(), f)
}

func writeText(w http.ResponseWriter, code int, text string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(text))
}
