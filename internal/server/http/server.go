package internalhttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/gatherly/gatherly/internal/app"
	"github.com/gatherly/gatherly/internal/auth"
	"github.com/gatherly/gatherly/internal/blob"
	"github.com/gatherly/gatherly/internal/broadcast"
	"github.com/gatherly/gatherly/internal/storage"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Host string
	Port int
}

type Server struct {
	srv     *http.Server
	addr    string
	app     *app.App
	auth    *auth.Service
	hub     *broadcast.Hub
	blobs   blob.Store
	baseCtx context.Context
}

func NewServer(config Config, application *app.App, authSvc *auth.Service, hub *broadcast.Hub, blobs blob.Store, uploadsDir string) *Server {
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	s := &Server{
		addr:  addr,
		app:   application,
		auth:  authSvc,
		hub:   hub,
		blobs: blobs,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/auth/register", s.register).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", s.login).Methods(http.MethodPost)
	r.HandleFunc("/events", s.listEvents).Methods(http.MethodGet)
	r.HandleFunc("/events/{id}", s.getEvent).Methods(http.MethodGet)
	r.Handle("/events", s.requireAuth(http.HandlerFunc(s.createEvent))).Methods(http.MethodPost)
	r.Handle("/events/{id}/join", s.requireAuth(http.HandlerFunc(s.joinEvent))).Methods(http.MethodPut)
	r.Handle("/events/{id}", s.requireAuth(http.HandlerFunc(s.updateEvent))).Methods(http.MethodPut)
	r.Handle("/events/{id}", s.requireAuth(http.HandlerFunc(s.deleteEvent))).Methods(http.MethodDelete)
	r.HandleFunc("/ws", s.serveWS).Methods(http.MethodGet)
	if uploadsDir != "" {
		r.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir))))
	}

	s.srv = &http.Server{Addr: addr, Handler: loggingMiddleware(r)}
	return s
}

// Handler exposes the assembled handler for tests running on httptest.
func (s *Server) Handler() http.Handler {
	if s.baseCtx == nil {
		s.baseCtx = context.Background()
	}
	return s.srv.Handler
}

func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx

	log.Printf("starting http server on %s", s.addr)
	err := s.srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.hub.CloseAll()
	return s.srv.Shutdown(ctx)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// serveWS upgrades the connection into a broadcast session. A connection
// presenting an invalid token is rejected before the upgrade; a connection
// presenting no token at all becomes an anonymous read-only session.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if token := bearerToken(r); token != "" {
		var err error
		userID, err = s.auth.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("failed to upgrade connection: %v", err)
		return
	}

	sess := broadcast.NewSession(conn, userID)
	s.hub.Register(sess)
	log.WithField("session", sess.ID).WithField("user", userID).Info("client connected")
	sess.Run(s.baseCtx, s.hub, s.resyncAttendees)
	log.WithField("session", sess.ID).Info("client disconnected")
}

// resyncAttendees answers a fresh room subscription with the current
// committed count, closing the race between subscribing and the last
// attendee_joined emitted before the subscription existed.
func (s *Server) resyncAttendees(sess *broadcast.Session, eventID string) {
	e, err := s.app.GetEvent(s.baseCtx, eventID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFoundEvent) {
			log.Errorf("failed to resync event %q: %v", eventID, err)
		}
		return
	}
	s.hub.SendTo(sess.ID, broadcast.AttendeeJoined{ID: e.ID, AttendeesCount: e.AttendeesCount})
}
