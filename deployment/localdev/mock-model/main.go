// Command mock-model answers classification requests for local development of the remote
// classifier. It applies a handful of fixed heuristics instead of a trained model.
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"
)

type predictRequest struct {
	Record map[string]string `json:"record"`
}

type predictResponse struct {
	Prediction string `json:"prediction"`
}

var suspiciousFlags = map[string]struct{}{
	"S0":   {},
	"REJ":  {},
	"RSTO": {},
	"RSTR": {},
	"SH":   {},
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil)).With(slog.String("component", "model-mock"))
	addr := ":9090"
	if v := os.Getenv("MOCK_MODEL_ADDRESS"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           logRequests(logger, newMux()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("listening", slog.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, predictResponse{Prediction: predict(req.Record)})
	})
	return mux
}

func predict(rec map[string]string) string {
	if number(rec["num_failed_logins"]) > 0 || number(rec["rerror_rate"]) > 0.5 {
		return "abnormal"
	}
	if _, ok := suspiciousFlags[rec["flag"]]; ok {
		return "abnormal"
	}
	if number(rec["count"]) > 100 && number(rec["srv_count"]) < 5 {
		return "abnormal"
	}
	return "normal"
}

func number(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.status),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
