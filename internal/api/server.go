// Package api exposes the chatbot's HTTP surface: the channel webhooks,
// health and stats endpoints, the queue listing and the manual sweep
// trigger.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/bot"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/messaging"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/models"
	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/scheduler"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = ":8080"
	// DefaultSweepCron runs the inactivity sweep every five minutes.
	DefaultSweepCron = "@every 5m"
	// DefaultShutdownTimeout bounds graceful HTTP shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultReadHeaderTimeout bounds slow-header clients.
	DefaultReadHeaderTimeout = 10 * time.Second
)

// Opts holds configuration options for the server.
type Opts struct {
	Addr      string
	SweepCron string
}

// Option defines a configuration option for the server.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithSweepCron sets the cron expression for the periodic inactivity
// sweep. An empty expression disables it.
func WithSweepCron(expr string) Option {
	return func(o *Opts) { o.SweepCron = expr }
}

// Server serves the chatbot's HTTP endpoints and runs the background
// pieces: the messaging event loop and the sweep schedule.
type Server struct {
	addr      string
	sweepCron string
	bot       *bot.Bot
	svc       messaging.Service
	sched     *scheduler.Scheduler
}

// NewServer builds the HTTP server around a bot and its messaging service.
func NewServer(b *bot.Bot, svc messaging.Service, opts ...Option) *Server {
	o := Opts{Addr: DefaultAddr, SweepCron: DefaultSweepCron}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		addr:      o.Addr,
		sweepCron: o.SweepCron,
		bot:       b,
		svc:       svc,
	}
}

// Handler builds the route table. Webhook routes are only mounted when the
// messaging service actually serves webhooks (Twilio and Meta do, the
// whatsmeow channel receives events over its own socket).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/queue", s.queueHandler)
	mux.HandleFunc("/sweep", s.sweepHandler)

	if p, ok := s.svc.(interface {
		WebhookHandler(http.ResponseWriter, *http.Request)
	}); ok {
		mux.HandleFunc("/webhook/messages", p.WebhookHandler)
		slog.Debug("Server.Handler: message webhook mounted", "path", "/webhook/messages")
	}
	if p, ok := s.svc.(interface {
		StatusWebhookHandler(http.ResponseWriter, *http.Request)
	}); ok {
		mux.HandleFunc("/webhook/status", p.StatusWebhookHandler)
		slog.Debug("Server.Handler: status webhook mounted", "path", "/webhook/status")
	}
	return mux
}

// Run starts the bot's event loop, schedules the periodic sweep and serves
// HTTP until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	botErr := make(chan error, 1)
	go func() {
		botErr <- s.bot.Run(ctx)
	}()

	if s.sweepCron != "" {
		s.sched = scheduler.NewScheduler()
		if err := s.sched.AddJob(s.sweepCron, func() {
			report := s.bot.RunSweep(context.Background())
			if report.Total() > 0 {
				slog.Info("Server: sweep closed conversations", "report", report)
			}
		}); err != nil {
			return err
		}
		defer s.sched.Stop()
		slog.Info("Server.Run: sweep scheduled", "cron", s.sweepCron)
	}

	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}
	httpErr := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.addr)
		httpErr <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: shutdown failed", "error", err)
		}
		if err := s.svc.Stop(); err != nil {
			slog.Error("Server.Run: messaging stop failed", "error", err)
		}
		return ctx.Err()
	case err := <-httpErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-botErr:
		return err
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// statsHandler returns operational counters (GET /stats).
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("statsHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	counts, err := s.bot.Archive().Counts(r.Context())
	if err != nil {
		slog.Error("statsHandler: failed to read archive counts", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch stats"))
		return
	}
	stats := map[string]interface{}{
		"active_sessions": s.bot.Sessions().Len(),
		"queue_size":      s.bot.Queue().Size(),
		"leads":           counts.Leads,
		"surveys":         counts.Surveys,
		"closures":        counts.Closures,
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

// queueHandler returns the handoff queue (GET /queue).
func (s *Server) queueHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("queueHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	entries := s.bot.Queue().Entries()
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	}))
}

// sweepHandler runs one sweep pass immediately (POST /sweep).
func (s *Server) sweepHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("sweepHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	report := s.bot.RunSweep(r.Context())
	slog.Info("sweepHandler: sweep finished", "closed", report.Total())
	writeJSONResponse(w, http.StatusOK, models.Success(report))
}
