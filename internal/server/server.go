package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/JesusEspinola/TFG/internal/config"
	"github.com/JesusEspinola/TFG/internal/scatter"
	"github.com/JesusEspinola/TFG/internal/scene"
)

// Server exposes the scattered forest to renderers over HTTP and websockets.
type Server struct {
	cfg       config.ServerConfig
	session   *scene.Session
	scatterer *scatter.Scatterer
	terrain   scatter.ReadySampler
	store     scene.Store
	logger    logrus.FieldLogger

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// Deps are the collaborators a Server drives.
type Deps struct {
	Session   *scene.Session
	Scatterer *scatter.Scatterer
	Terrain   scatter.ReadySampler
	Store     scene.Store
	Logger    logrus.FieldLogger
}

func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Session == nil || deps.Scatterer == nil || deps.Terrain == nil {
		return nil, errors.New("server needs a session, scatterer and terrain")
	}
	if deps.Store == nil {
		deps.Store = scene.NewMemoryStore()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &Server{
		cfg:       cfg,
		session:   deps.Session,
		scatterer: deps.Scatterer,
		terrain:   deps.Terrain,
		store:     deps.Store,
		logger:    deps.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}, nil
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/trees", s.handleTrees).Methods(http.MethodGet)
	r.HandleFunc("/scatter", s.handleScatter).Methods(http.MethodPost)
	r.HandleFunc("/debug", s.handleDebug).Methods(http.MethodGet)
	r.HandleFunc("/debug/toggle", s.handleDebugToggle).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	return r
}

func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.ListenAddress, s.cfg.HTTPPort)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("HTTP server listening on %s", addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		timeout := s.cfg.ShutdownTimeout.Duration()
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleTrees(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Current())
}

type scatterRequest struct {
	Count *int `json:"count"`
}

func (s *Server) handleScatter(w http.ResponseWriter, r *http.Request) {
	var req scatterRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid scatter request body", http.StatusBadRequest)
			return
		}
	}

	select {
	case <-s.terrain.Ready():
	default:
		http.Error(w, "terrain is not ready", http.StatusConflict)
		return
	}
	if err := s.terrain.Err(); err != nil {
		http.Error(w, fmt.Sprintf("terrain unavailable: %v", err), http.StatusServiceUnavailable)
		return
	}

	count := s.scatterer.Count
	if req.Count != nil {
		count = *req.Count
	}
	trees, err := s.scatterer.RunWithCount(s.terrain, count)
	switch {
	case errors.Is(err, scatter.ErrConfiguration):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, scatter.ErrTerrainQuery):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	gen := s.session.Replace(trees)
	if err := s.store.Save(scene.TakeSnapshot(s.session)); err != nil {
		s.logger.WithError(err).Warn("save scene snapshot")
	}
	s.logger.WithFields(logrus.Fields{"generation": gen, "count": len(trees)}).Info("forest rescattered")
	writeJSON(w, http.StatusOK, s.session.Current())
}

type debugResponse struct {
	Visible bool `json:"visible"`
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, debugResponse{Visible: s.session.Debug().Visible()})
}

func (s *Server) handleDebugToggle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, debugResponse{Visible: s.session.ToggleDebug()})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, unsubscribe := s.session.Subscribe()
	defer unsubscribe()

	if err := s.writeEvent(conn, s.session.Current()); err != nil {
		return
	}

	// The client never sends anything meaningful; reading detects disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.writeEvent(conn, ev); err != nil {
				s.logger.WithError(err).Debug("websocket write failed")
				return
			}
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, ev scene.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(ev)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}
