// Package api serves the operational HTTP endpoints next to the device socket.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"medcontrol/internal/middleware"
	"medcontrol/internal/registry"
	"medcontrol/internal/stats"
	"medcontrol/internal/workers"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type DeviceRegistry interface {
	Register(userID int64, conn registry.Conn)
	Unregister(conn registry.Conn) bool
	Lookup(userID int64) (registry.Conn, bool)
	Count() int
}

// PushDevices builds registry connections for app push tokens.
type PushDevices interface {
	Conn(token string) registry.Conn
}

type DaySummaries interface {
	Summary(ctx context.Context, day time.Time) (*stats.DaySummary, error)
}

type WorkerStats interface {
	GetStats() workers.WorkerStats
}

type SocketStats interface {
	ActiveConnections() int
}

// Deps are the collaborators the handlers report on. Only Devices is
// required; the rest switch their section of the API off when nil.
type Deps struct {
	DB      Pinger
	Devices DeviceRegistry
	Push    PushDevices
	Daily   DaySummaries
	Workers WorkerStats
	Sockets SocketStats
}

type Server struct {
	deps      Deps
	logger    *zap.Logger
	startTime time.Time
	now       func() time.Time
}

func NewServer(deps Deps, logger *zap.Logger) *Server {
	return &Server{
		deps:      deps,
		logger:    logger,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Router mounts the API and the websocket endpoint.
func (s *Server) Router(ws http.HandlerFunc) http.Handler {
	router := mux.NewRouter()
	if ws != nil {
		router.HandleFunc("/ws", ws)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.healthCheckHandler).Methods("GET")
	api.HandleFunc("/stats", s.statsHandler).Methods("GET")
	api.HandleFunc("/users/{id:[0-9]+}/device", s.userDeviceHandler).Methods("GET")
	api.HandleFunc("/devices", s.registerPushHandler).Methods("POST")
	api.HandleFunc("/devices/{token}", s.unregisterPushHandler).Methods("DELETE")

	router.Use(middleware.RequestLogger(s.logger))
	return middleware.CORS(router)
}

func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK

	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.Ping(ctx); err != nil {
			s.logger.Warn("Health check: database unreachable", zap.Error(err))
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, httpStatus, map[string]string{
		"status": status,
		"time":   s.now().Format(time.RFC3339),
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"registered_devices": s.deps.Devices.Count(),
		"uptime":             formatDuration(s.now().Sub(s.startTime)),
		"push_enabled":       s.deps.Push != nil,
		"timestamp":          s.now().Unix(),
	}

	if s.deps.Sockets != nil {
		response["active_sockets"] = s.deps.Sockets.ActiveConnections()
	}
	if s.deps.Workers != nil {
		response["workers"] = s.deps.Workers.GetStats()
	}
	if s.deps.Daily != nil {
		summary, err := s.deps.Daily.Summary(r.Context(), s.now())
		if err != nil {
			s.logger.Warn("Failed to read dispatch stats", zap.Error(err))
		} else {
			response["today"] = summary
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) userDeviceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	response := map[string]interface{}{
		"user_id": userID,
		"online":  false,
	}
	if conn, ok := s.deps.Devices.Lookup(userID); ok {
		response["online"] = true
		response["conn_id"] = conn.ID()
	}

	writeJSON(w, http.StatusOK, response)
}

type registerPushRequest struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

func (s *Server) registerPushHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Push == nil {
		writeError(w, http.StatusServiceUnavailable, "push delivery is not configured")
		return
	}

	var req registerPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID <= 0 || req.Token == "" {
		writeError(w, http.StatusBadRequest, "user_id and token are required")
		return
	}

	conn := s.deps.Push.Conn(req.Token)
	s.deps.Devices.Register(req.UserID, conn)

	s.logger.Info("Push device registered",
		zap.Int64("user_id", req.UserID),
		zap.String("conn_id", conn.ID()),
	)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id": req.UserID,
		"conn_id": conn.ID(),
	})
}

func (s *Server) unregisterPushHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Push == nil {
		writeError(w, http.StatusServiceUnavailable, "push delivery is not configured")
		return
	}

	conn := s.deps.Push.Conn(mux.Vars(r)["token"])
	if !s.deps.Devices.Unregister(conn) {
		writeError(w, http.StatusNotFound, "device not registered")
		return
	}

	s.logger.Info("Push device unregistered", zap.String("conn_id", conn.ID()))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
