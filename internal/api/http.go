package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/miradorstack/mirador-netlog/internal/config"
	"github.com/miradorstack/mirador-netlog/internal/models"
	"github.com/miradorstack/mirador-netlog/internal/repo"
	"github.com/miradorstack/mirador-netlog/internal/utils"
)

// Service is the behaviour the transports need from the netlog facade.
type Service interface {
	DashboardStats(ctx context.Context) (models.DashboardStats, error)
	TrafficScatter(ctx context.Context, limit int) (models.TrafficScatter, error)
	AnalyzeLog(ctx context.Context, r io.Reader, delimiter rune) (models.AnalysisReport, error)
	Explain(ctx context.Context, rec models.LogRecord, label models.Label) (models.Explanation, bool, error)
}

// Handler serves the dashboard REST API.
type Handler struct {
	svc            Service
	logger         *slog.Logger
	maxUploadBytes int64
	scatterLimit   int
}

// NewHandler constructs the REST handler.
func NewHandler(svc Service, logger *slog.Logger, cfg config.ServerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:            svc,
		logger:         logger,
		maxUploadBytes: cfg.MaxUploadBytes,
		scatterLimit:   cfg.ScatterLimit,
	}
}

type errorResponse struct {
	Ok      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type explainRequest struct {
	Record map[string]any `json:"record"`
	Label  string         `json:"label"`
}

type explainResponse struct {
	Explanation models.Explanation `json:"explanation"`
}

// RegisterRoutes mounts the API on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard-data", h.handleDashboard)
		r.Get("/traffic-scatter", h.handleTrafficScatter)
		r.Post("/analyze-log", h.handleAnalyzeLog)
		r.Post("/explain", h.handleExplain)
	})
}

// NewRouter builds the chi router with the standard middleware stack and CORS.
func NewRouter(h *Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	h.RegisterRoutes(r)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(r)
}

// NewHTTPServer wraps handler in an http.Server bound to the configured address.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "SERVING"})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.DashboardStats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleTrafficScatter(w http.ResponseWriter, r *http.Request) {
	limit := h.scatterLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Code: "invalid_request", Message: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	scatter, err := h.svc.TrafficScatter(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scatter)
}

func (h *Handler) handleAnalyzeLog(w http.ResponseWriter, r *http.Request) {
	delimiter, err := repo.ParseDelimiter(r.URL.Query().Get("delimiter"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	body, closeBody, err := uploadBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer closeBody()

	report, err := h.svc.AnalyzeLog(r.Context(), body, delimiter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// uploadBody returns the "file" part of a multipart upload, or the raw body otherwise.
func uploadBody(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, err
		}
		return nil, nil, &utils.InputFormatError{Err: fmt.Errorf("multipart field %q: %w", "file", err)}
	}
	return file, func() { _ = file.Close() }, nil
}

func (h *Handler) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}
	label, err := models.ParseLabel(req.Label)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}

	explanation, _, err := h.svc.Explain(r.Context(), recordFromJSON(req.Record), label)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, explainResponse{Explanation: explanation})
}

// recordFromJSON renders decoded JSON values back into cell text.
func recordFromJSON(fields map[string]any) models.LogRecord {
	rec := make(models.LogRecord, len(fields))
	for k, v := range fields {
		switch t := v.(type) {
		case nil:
			rec[k] = ""
		case string:
			rec[k] = t
		case float64:
			rec[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			rec[k] = strconv.FormatBool(t)
		default:
			rec[k] = fmt.Sprint(t)
		}
	}
	return rec
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err),
		)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

func classifyError(err error) (int, string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case utils.IsMissingField(err):
		return http.StatusUnprocessableEntity, "missing_required_field"
	case utils.IsInputFormat(err):
		return http.StatusBadRequest, "invalid_input_format"
	case errors.Is(err, utils.ErrEmptyDataset):
		return http.StatusServiceUnavailable, "empty_dataset"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
