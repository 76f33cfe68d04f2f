package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/joshp123/xiqsync/internal/store"
)

// Reader is the read side of the access point store.
type Reader interface {
	Get(ctx context.Context, id int64) (store.Record, error)
	List(ctx context.Context) ([]store.Record, error)
	FindByHostname(ctx context.Context, name string, exact bool) ([]store.Record, error)
	Ping(ctx context.Context) error
}

type apRecord struct {
	store.Record
	ExpiresInSeconds int64 `json:"expires_in_seconds"`
}

func toAPRecord(rec store.Record) apRecord {
	if rec.SSIDs == nil {
		rec.SSIDs = []string{}
	}
	return apRecord{Record: rec, ExpiresInSeconds: int64(rec.TTL / time.Second)}
}

// NewRouter builds the HTTP surface of serve mode.
func NewRouter(reader Reader, registry *prometheus.Registry, allowedOrigins []string) http.Handler {
	api := &apiHandler{reader: reader}

	r := mux.NewRouter()
	r.HandleFunc("/health", api.health).Methods(http.MethodGet)
	r.Handle("/metrics", MetricsHandler(registry)).Methods(http.MethodGet)
	r.HandleFunc("/api/aps", api.list).Methods(http.MethodGet)
	r.HandleFunc("/api/aps/{id:[0-9]+}", api.get).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

type apiHandler struct {
	reader Reader
}

// health returns OK when the store answers a ping.
func (h *apiHandler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.reader.Ping(r.Context()); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *apiHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		records []store.Record
		err     error
	)
	if host := r.URL.Query().Get("hostname"); host != "" {
		records, err = h.reader.FindByHostname(r.Context(), host, r.URL.Query().Get("exact") == "true")
	} else {
		records, err = h.reader.List(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]apRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, toAPRecord(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *apiHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := h.reader.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPRecord(rec))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"message": err.Error()})
}
