// Command payments is a local stand-in for a payment proxy, used to try
// stampede scenarios without a real backend. POST /payments accepts
// {"id": "<uuid>", "amount_cents": n} and answers 202, or 503 once the
// configured backend capacity is exhausted.
package main

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"
)

type paymentRequest struct {
	ID          string `json:"id"`
	AmountCents *int64 `json:"amount_cents"`
}

type server struct {
	log      *logrus.Logger
	capacity *rate.Limiter
	inflight chan struct{}
	minDelay time.Duration
	maxDelay time.Duration
	served   atomic.Int64
	rejected atomic.Int64
}

func main() {
	addr := pflag.String("addr", ":8081", "Listen address")
	rps := pflag.Float64("capacity", 1500, "Payments per second the fake backend accepts before answering 503")
	maxInflight := pflag.Int("max-inflight", 1000, "Concurrent payments before answering 503")
	minDelay := pflag.Duration("min-delay", 20*time.Millisecond, "Minimum processing delay")
	maxDelay := pflag.Duration("max-delay", 120*time.Millisecond, "Maximum processing delay")
	pflag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	s := &server{
		log:      log,
		capacity: rate.NewLimiter(rate.Limit(*rps), int(*rps)),
		inflight: make(chan struct{}, *maxInflight),
		minDelay: *minDelay,
		maxDelay: max(*maxDelay, *minDelay),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /payments", s.handlePayment)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"ok":       true,
			"served":   s.served.Load(),
			"rejected": s.rejected.Load(),
		})
	})

	log.WithField("addr", *addr).Info("payments test server listening")
	if err := http.ListenAndServe(*addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server stopped")
	}
}

func (s *server) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.ID == "" || req.AmountCents == nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing ID or Amount"})
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil || id.Version() != 4 {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "id must be a UUID v4"})
		return
	}

	select {
	case s.inflight <- struct{}{}:
		defer func() { <-s.inflight }()
	default:
		s.reject(w, "too many in-flight payments")
		return
	}
	if !s.capacity.Allow() {
		s.reject(w, "backend over capacity")
		return
	}

	delay := s.minDelay
	if spread := s.maxDelay - s.minDelay; spread > 0 {
		delay += rand.N(spread)
	}
	select {
	case <-time.After(delay):
	case <-r.Context().Done():
		return
	}

	s.served.Add(1)
	respondJSON(w, http.StatusAccepted, map[string]any{
		"id":           id.String(),
		"amount_cents": *req.AmountCents,
		"status":       "accepted",
	})
}

func (s *server) reject(w http.ResponseWriter, reason string) {
	if n := s.rejected.Add(1); n%1000 == 1 {
		s.log.WithFields(logrus.Fields{"reason": reason, "rejected": n}).Warn("rejecting payments")
	}
	respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": reason})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
