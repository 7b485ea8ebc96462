package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sanoj619/SanSM/internal/model"
	"github.com/sanoj619/SanSM/internal/pipeline"
)

// Pipeline is the set of operations the HTTP surface exposes.
type Pipeline interface {
	FetchStock(ctx context.Context, symbol string) (*model.InstrumentSnapshot, error)
	ProcessStock(ctx context.Context, symbol string) (*pipeline.QuoteResult, error)
	ScanOHL(ctx context.Context) (*pipeline.ScanReport, error)
	RefreshUniverse(ctx context.Context) (*pipeline.RefreshReport, error)
}

// Server is the HTTP front of the service.
type Server struct {
	httpServer *http.Server
}

// New creates a Server listening on addr.
func New(addr string, p Pipeline, access zerolog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(p, access),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter builds the chi router with middleware and routes.
func NewRouter(p Pipeline, access zerolog.Logger) http.Handler {
	h := &handler{pipeline: p}
	r := chi.NewRouter()

	r.Use(RequestID(log.Logger))
	r.Use(middleware.RealIP)
	r.Use(AccessLog(access))
	r.Use(middleware.Recoverer)

	r.Get("/test", h.test)
	r.Get("/fetch-stock/{symbol}", h.fetchStock)
	r.Get("/process-stock/{symbol}", h.processStock)
	r.Get("/UpdateFNOStockList", h.updateFNOStockList)
	r.Get("/UpdateOHLStocks", h.updateOHLStocks)

	return r
}

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
