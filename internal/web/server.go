package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/example/mealbook/internal/auth"
	"github.com/example/mealbook/internal/clock"
	"github.com/example/mealbook/internal/domain/booking"
	"github.com/example/mealbook/internal/lifecycle"
	"github.com/example/mealbook/internal/presence"
	"github.com/example/mealbook/internal/scheduler"
	"github.com/example/mealbook/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Server struct {
	Auth      *auth.Store
	Lifecycle *lifecycle.Manager
	Presence  *presence.Service
	Jobs      *scheduler.Scheduler
	Log       *zap.Logger
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	authed := func(h http.HandlerFunc) http.Handler { return s.Auth.RequireAuth(h) }
	admin := func(h http.HandlerFunc) http.Handler { return s.Auth.RequireAuth(s.Auth.RequireAdmin(h)) }

	mux.Handle("POST /api/bookings", authed(s.handleBook))
	mux.Handle("DELETE /api/bookings/{date}", authed(s.handleCancel))
	mux.Handle("POST /api/location", authed(s.handleLocation))

	mux.Handle("GET /api/admin/cutoff", admin(s.handleGetCutoff))
	mux.Handle("PUT /api/admin/cutoff", admin(s.handleSetCutoff))
	mux.Handle("POST /api/admin/jobs/{name}", admin(s.handleRunJob))

	return mux
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := s.Auth.Authenticate(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid_credentials", Message: "invalid username/password"})
		return
	}
	if err != nil {
		s.internal(w, "login", err)
		return
	}
	if err := s.Auth.SetSession(w, r, u.ID); err != nil {
		s.internal(w, "set session", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": u.ID, "username": u.Username, "role": string(u.Role)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

type bookRequest struct {
	StartDate string  `json:"startDate"`
	EndDate   string  `json:"endDate"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	var req bookRequest
	if !decode(w, r, &req) {
		return
	}
	start, err := clock.ParseDate(req.StartDate)
	if err != nil {
		badRequest(w, "startDate must be YYYY-MM-DD")
		return
	}
	end := start
	if req.EndDate != "" {
		if end, err = clock.ParseDate(req.EndDate); err != nil {
			badRequest(w, "endDate must be YYYY-MM-DD")
			return
		}
	}

	if err := s.Lifecycle.BookRange(r.Context(), u.ID, start, end, req.Latitude, req.Longitude); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"status":    string(booking.StatusBooked),
		"startDate": start.Format(clock.DateLayout),
		"endDate":   end.Format(clock.DateLayout),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	d, err := clock.ParseDate(r.PathValue("date"))
	if err != nil {
		badRequest(w, "date must be YYYY-MM-DD")
		return
	}
	if err := s.Lifecycle.Cancel(r.Context(), u.ID, d); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(booking.StatusCancelled), "date": d.Format(clock.DateLayout)})
}

type locationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	var req locationRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.Presence.Update(r.Context(), u.ID, req.Latitude, req.Longitude)
	if err != nil {
		s.internal(w, "location update", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"insideFence": res.InsideFence, "availableForLunch": res.AvailableForLunch})
}

type cutoffBody struct {
	Cutoff string `json:"cutoff"`
}

func (s *Server) handleGetCutoff(w http.ResponseWriter, r *http.Request) {
	c, err := s.Lifecycle.Cutoff(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cutoffBody{Cutoff: c.String()})
}

func (s *Server) handleSetCutoff(w http.ResponseWriter, r *http.Request) {
	var req cutoffBody
	if !decode(w, r, &req) {
		return
	}
	c, err := booking.ParseCutoff(req.Cutoff)
	if err != nil {
		badRequest(w, "cutoff must be HH:MM")
		return
	}
	if err := s.Lifecycle.SetCutoff(r.Context(), c); err != nil {
		s.internal(w, "set cutoff", err)
		return
	}
	writeJSON(w, http.StatusOK, cutoffBody{Cutoff: c.String()})
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	known := false
	for _, n := range s.Jobs.Names() {
		known = known || n == name
	}
	if !known {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown_job", Message: name})
		return
	}
	if err := s.Jobs.Trigger(r.Context(), name); err != nil {
		// the run completed; some items failed
		writeJSON(w, http.StatusOK, map[string]string{"job": name, "result": "completed_with_errors", "detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job": name, "result": "ok"})
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Date    string `json:"date,omitempty"`
}

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{lifecycle.ErrOutOfArea, "out_of_area", http.StatusUnprocessableEntity},
	{lifecycle.ErrPastDate, "past_date", http.StatusUnprocessableEntity},
	{lifecycle.ErrInvalidRange, "invalid_range", http.StatusUnprocessableEntity},
	{lifecycle.ErrCutoffClosed, "cutoff_closed", http.StatusUnprocessableEntity},
	{lifecycle.ErrPastCancellation, "past_cancellation", http.StatusUnprocessableEntity},
	{lifecycle.ErrAlreadyBooked, "already_booked", http.StatusConflict},
	{lifecycle.ErrBookingNotFound, "booking_not_found", http.StatusNotFound},
	{lifecycle.ErrConfigMissing, "config_missing", http.StatusServiceUnavailable},
	{store.ErrConflict, "conflict", http.StatusConflict},
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	for _, e := range errorCodes {
		if !errors.Is(err, e.err) {
			continue
		}
		body := errorBody{Error: e.code, Message: err.Error()}
		var de *lifecycle.DateError
		if errors.As(err, &de) {
			body.Date = de.Date.Format(clock.DateLayout)
		}
		writeJSON(w, e.status, body)
		return
	}
	s.internal(w, "request failed", err)
}

func (s *Server) internal(w http.ResponseWriter, msg string, err error) {
	if s.Log != nil {
		s.Log.Error(msg, zap.Error(err))
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal error"})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v); err != nil {
		badRequest(w, "invalid JSON body")
		return false
	}
	return true
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Start(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
