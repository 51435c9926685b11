// Package gateway is the HTTP surface: health and status probes plus a
// small knowledge-base REST API for the hotel's back office.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hostalia/concierge/internal/bus"
	"github.com/hostalia/concierge/internal/channels"
	"github.com/hostalia/concierge/internal/config"
	"github.com/hostalia/concierge/internal/kb"
	"github.com/hostalia/concierge/internal/pms"
)

// Server serves the HTTP endpoints.
type Server struct {
	cfg         *config.Config
	bus         *bus.MessageBus
	channelMgr  *channels.Manager
	kbService   *kb.Service
	pmsClient   *pms.Client
	rateLimiter *channels.WebhookRateLimiter

	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates the gateway server. kbService may be nil: the KB
// endpoints then answer 503.
func NewServer(cfg *config.Config, msgBus *bus.MessageBus, channelMgr *channels.Manager, kbService *kb.Service) *Server {
	return &Server{
		cfg:         cfg,
		bus:         msgBus,
		channelMgr:  channelMgr,
		kbService:   kbService,
		rateLimiter: channels.NewWebhookRateLimiter(),
	}
}

// SetPMS attaches the property-management-system client. Must be called
// before BuildMux; nil leaves the availability endpoint answering 503.
func (s *Server) SetPMS(client *pms.Client) {
	s.pmsClient = client
}

// BuildMux creates and caches the HTTP mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.rateLimited(s.handleStatus))
	mux.HandleFunc("/v1/kb", s.rateLimited(s.handleKB))
	mux.HandleFunc("/v1/availability", s.rateLimited(s.handleAvailability))
	mux.HandleFunc("/v1/rate", s.rateLimited(s.handleRate))

	s.mux = mux
	return mux
}

// Start listens until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	slog.Info("gateway starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

// rateLimited wraps a handler with per-IP rate limiting.
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.rateLimiter.Allow(host) {
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// handleStatus reports channel health and bus depths.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{
		"channels": s.channelMgr.GetStatus(),
		"queues": map[string]int{
			"inbound":  s.bus.InboundSize(),
			"outbound": s.bus.OutboundSize(),
		},
	}
	writeJSON(w, http.StatusOK, status)
}

// handleKB serves the knowledge-base listing for the back office.
// GET /v1/kb         → full listing
// GET /v1/kb?q=spa   → search
func (s *Server) handleKB(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.kbService == nil {
		http.Error(w, `{"error":"knowledge base unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query().Get("q")
	entries, err := s.kbService.Entries(r.Context(), query)
	if err != nil {
		slog.Error("kb listing failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// handleAvailability proxies an availability check to the PMS.
// GET /v1/availability?check_in=2026-09-01&check_out=2026-09-03&guests=2
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.pmsClient == nil {
		http.Error(w, `{"error":"pms not configured"}`, http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	checkIn, checkOut := q.Get("check_in"), q.Get("check_out")
	if checkIn == "" || checkOut == "" {
		http.Error(w, `{"error":"check_in and check_out are required"}`, http.StatusBadRequest)
		return
	}
	guests, _ := strconv.Atoi(q.Get("guests"))
	if guests <= 0 {
		guests = 1
	}

	result, err := s.pmsClient.CheckAvailability(r.Context(), checkIn, checkOut, guests)
	if err != nil {
		slog.Error("pms availability check failed", "error", err)
		http.Error(w, `{"error":"pms request failed"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"availability": result})
}

// handleRate proxies a rate quote to the PMS.
// GET /v1/rate?room_type=doble&check_in=2026-09-01&check_out=2026-09-03
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.pmsClient == nil {
		http.Error(w, `{"error":"pms not configured"}`, http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	roomType, checkIn, checkOut := q.Get("room_type"), q.Get("check_in"), q.Get("check_out")
	if roomType == "" || checkIn == "" || checkOut == "" {
		http.Error(w, `{"error":"room_type, check_in and check_out are required"}`, http.StatusBadRequest)
		return
	}

	result, err := s.pmsClient.QuoteRate(r.Context(), roomType, checkIn, checkOut)
	if err != nil {
		slog.Error("pms rate quote failed", "error", err)
		http.Error(w, `{"error":"pms request failed"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rate": result})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}
