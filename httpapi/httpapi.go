// Package httpapi exposes device status and reconfiguration over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/arloliu/go-dvl/logger"
	"github.com/arloliu/go-dvl/nortek"
	"github.com/arloliu/go-dvl/supervisor"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodySize bounds request bodies; every request body is a small JSON object.
const maxBodySize = 4 << 10

// Controller is the device control surface served by the API.
// *supervisor.Supervisor implements it.
type Controller interface {
	List() []supervisor.DeviceStatus
	Status(name string) (supervisor.DeviceStatus, error)
	SetPowerLevel(name string, level nortek.PowerLevel) error
	SetSalinity(name string, value float64) error
	SetSamplingRate(name string, rate float64) error
	Restart(name string) error
	Gatherer() prometheus.Gatherer
}

var _ Controller = (*supervisor.Supervisor)(nil)

type handler struct {
	ctrl   Controller
	logger logger.Logger
}

// NewRouter returns the API routes.
func NewRouter(ctrl Controller, l logger.Logger) http.Handler {
	h := &handler{ctrl: ctrl, logger: l}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.health)
	r.Get("/metrics", h.metrics)

	r.Route("/devices", func(r chi.Router) {
		r.Get("/", h.listDevices)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", h.getDevice)
			r.Put("/power-level", h.setPowerLevel)
			r.Put("/salinity", h.setSalinity)
			r.Put("/sampling-rate", h.setSamplingRate)
			r.Post("/restart", h.restart)
		})
	})

	return r
}

type valueRequest struct {
	Value *float64 `json:"value"`
}

type powerLevelRequest struct {
	Level string `json:"level"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"devices": len(h.ctrl.List()),
	})
}

func (h *handler) metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(h.ctrl.Gatherer(), promhttp.HandlerOpts{
		ErrorLog:      promErrorLog{h.logger},
		ErrorHandling: promhttp.ContinueOnError,
	}).ServeHTTP(w, r)
}

// promErrorLog reports metric collection errors through the logger.
type promErrorLog struct {
	logger logger.Logger
}

func (l promErrorLog) Println(v ...any) {
	l.logger.Warn("httpapi: metrics", "error", fmt.Sprint(v...))
}

func (h *handler) listDevices(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"devices": h.ctrl.List(),
	})
}

func (h *handler) getDevice(w http.ResponseWriter, r *http.Request) {
	st, err := h.ctrl.Status(chi.URLParam(r, "name"))
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, st)
}

func (h *handler) setPowerLevel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req powerLevelRequest
	if err := decode(w, r, &req); err != nil {
		h.errorResponse(w, err)
		return
	}

	level, err := nortek.ParsePowerLevel(req.Level)
	if err != nil {
		h.errorResponse(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	if err := h.ctrl.SetPowerLevel(name, level); err != nil {
		h.errorResponse(w, err)
		return
	}

	h.deviceResponse(w, name)
}

func (h *handler) setSalinity(w http.ResponseWriter, r *http.Request) {
	h.setValue(w, r, h.ctrl.SetSalinity)
}

func (h *handler) setSamplingRate(w http.ResponseWriter, r *http.Request) {
	h.setValue(w, r, h.ctrl.SetSamplingRate)
}

func (h *handler) setValue(w http.ResponseWriter, r *http.Request, set func(string, float64) error) {
	name := chi.URLParam(r, "name")

	var req valueRequest
	if err := decode(w, r, &req); err != nil {
		h.errorResponse(w, err)
		return
	}
	if req.Value == nil {
		h.errorResponse(w, fmt.Errorf("%w: missing value", errBadRequest))
		return
	}

	if err := set(name, *req.Value); err != nil {
		h.errorResponse(w, err)
		return
	}

	h.deviceResponse(w, name)
}

func (h *handler) restart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.ctrl.Restart(name); err != nil {
		h.errorResponse(w, err)
		return
	}

	jsonResponse(w, http.StatusAccepted, map[string]any{"status": "restarting"})
}

func (h *handler) deviceResponse(w http.ResponseWriter, name string) {
	st, err := h.ctrl.Status(name)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, st)
}

var errBadRequest = errors.New("bad request")

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %w", errBadRequest, err)
	}

	return nil
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, supervisor.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, supervisor.ErrInvalidParameter), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		// the device did not accept the command
		return http.StatusBadGateway
	}
}

func (h *handler) errorResponse(w http.ResponseWriter, err error) {
	status := statusCode(err)
	if status == http.StatusBadGateway {
		h.logger.Warn("httpapi: device command failed", "error", err)
	}

	jsonResponse(w, status, map[string]any{"error": err.Error()})
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		begin := time.Now()

		next.ServeHTTP(ww, r)

		h.logger.Debug("httpapi: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(begin),
			"requestID", middleware.GetReqID(r.Context()))
	})
}
