// Package web serves the bot's HTTP surface: a small playlist UI that can
// trigger playback in any connected room, the health endpoints, and the
// Prometheus /metrics endpoint.
//
// Playback requests from the UI are not executed directly: they are turned
// into system-sourced play tasks and enqueued like any chat command, so the
// dispatcher's serial-execution guarantee also covers the web surface.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/roboto/internal/command"
	"github.com/MrWong99/roboto/internal/health"
	"github.com/MrWong99/roboto/internal/observe"
	"github.com/MrWong99/roboto/internal/player"
	"github.com/MrWong99/roboto/internal/room"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 5 * time.Second

// RoomLister exposes the ids of all known rooms. Implemented by
// [room.Registry].
type RoomLister interface {
	RoomIDs() []string
}

// Config carries the web server's collaborators.
type Config struct {
	// ListenAddr is the TCP address to listen on (e.g., ":8080").
	ListenAddr string

	// Library is the scanned media library shown by the playlist UI.
	Library *player.Library

	// Rooms lists the rooms offered as playback targets.
	Rooms RoomLister

	// Enqueuer receives play tasks triggered from the UI.
	Enqueuer room.Enqueuer

	// Health serves the /healthz and /readyz routes. Nil skips them.
	Health *health.Handler

	// Metrics instruments request handling. Nil selects
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Server is the bot's HTTP server.
type Server struct {
	cfg  Config
	tmpl *template.Template
	srv  *http.Server
}

// New creates the web server. It panics if the embedded templates fail to
// parse, which only happens on a broken build.
func New(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	s := &Server{
		cfg:  cfg,
		tmpl: template.Must(template.ParseFS(templateFS, "templates/*.gohtml")),
	}
	s.srv = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: observe.Middleware(cfg.Metrics)(s.routes()),
	}
	return s
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handlePlaylist)
	mux.HandleFunc("POST /play", s.handlePlay)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.cfg.Health != nil {
		s.cfg.Health.Register(mux)
	}
	return mux
}

// Handler returns the server's full handler chain. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		slog.Info("web: listening", "addr", s.cfg.ListenAddr)
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("web: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web: serve: %w", err)
	}
	return nil
}

// playlistData is the template payload for the playlist page.
type playlistData struct {
	Songs []player.Song
	Rooms []string
}

// handlePlaylist renders the playlist UI.
func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	data := playlistData{
		Songs: s.cfg.Library.Songs(),
		Rooms: s.cfg.Rooms.RoomIDs(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "playlist.gohtml", data); err != nil {
		slog.Error("web: render playlist", "err", err)
	}
}

// handlePlay enqueues a play task for the selected room and song.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	roomID := r.FormValue("room")
	if roomID == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}
	id, err := strconv.Atoi(r.FormValue("id"))
	if err != nil {
		http.Error(w, "id must be a number", http.StatusBadRequest)
		return
	}
	if _, ok := s.cfg.Library.Song(id); !ok {
		http.Error(w, "no song with id "+strconv.Itoa(id), http.StatusNotFound)
		return
	}

	task := command.NewSystemTask(command.CmdPlay, roomID)
	task.Args = []string{strconv.Itoa(id)}
	if !s.cfg.Enqueuer.Enqueue(task) {
		http.Error(w, "queue is full, try again", http.StatusServiceUnavailable)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
