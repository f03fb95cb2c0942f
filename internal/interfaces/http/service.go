package httpinterface

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/escrowd/internal/core/application"
	"github.com/tdex-network/escrowd/internal/core/ports"
	interfaces "github.com/tdex-network/escrowd/internal/interfaces"
	"golang.org/x/net/netutil"
)

const shutdownTimeout = 10 * time.Second

type service struct {
	opts   ServiceOpts
	server *http.Server
}

type ServiceOpts struct {
	Port           int
	MaxConnections int
	NoAuth         bool
	AuthSecret     string

	EscrowSvc application.EscrowService
	PubSubSvc application.PubSubService
	Custodian ports.Custodian
	// Faucet is optional and exposes the funding endpoints if defined.
	Faucet ports.Faucet
	// EventStream is optional and serves the live event feed if defined.
	EventStream http.Handler
	// Metrics is optional and is served at /metrics if defined.
	Metrics http.Handler
}

func (o ServiceOpts) validate() error {
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("invalid port %d", o.Port)
	}
	if o.MaxConnections < 0 {
		return fmt.Errorf("max connections must not be negative")
	}
	if !o.NoAuth && len(o.AuthSecret) <= 0 {
		return fmt.Errorf("auth secret is required if auth is enabled")
	}
	if o.EscrowSvc == nil {
		return fmt.Errorf("escrow app service must not be null")
	}
	if o.PubSubSvc == nil {
		return fmt.Errorf("pubsub app service must not be null")
	}
	if o.Custodian == nil {
		return fmt.Errorf("custodian must not be null")
	}
	return nil
}

func NewService(opts ServiceOpts) (interfaces.Service, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid opts: %s", err)
	}
	return &service{opts: opts}, nil
}

func (s *service) Start() error {
	address := fmt.Sprintf(":%d", s.opts.Port)
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	if s.opts.MaxConnections > 0 {
		lis = netutil.LimitListener(lis, s.opts.MaxConnections)
	}

	s.server = &http.Server{
		Handler:           NewRouter(s.opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(lis); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("http: server stopped unexpectedly")
		}
	}()

	log.Infof("http server listening on %s", address)
	return nil
}

func (s *service) Stop() {
	if s.server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("http: failed to gracefully stop server")
	}
	log.Debug("stopped http server")
}

// NewRouter returns the handler serving the v1 API of the ledger.
func NewRouter(opts ServiceOpts) http.Handler {
	h := &handler{
		escrowSvc: opts.EscrowSvc,
		pubsubSvc: opts.PubSubSvc,
		custodian: opts.Custodian,
		faucet:    opts.Faucet,
	}
	auth := callerAuth(opts.NoAuth, []byte(opts.AuthSecret))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Route("/v1", func(api chi.Router) {
		api.Get("/info", h.getInfo)
		api.Get("/orders/{id}", h.getOrder)
		api.Get("/buyers/{address}/orders", h.getBuyerOrders)
		api.Get("/balances", h.getBalances)
		api.Get("/balances/{asset}", h.getBalance)
		api.Get("/tokens", h.listTokens)
		api.Get("/tokens/{asset}", h.isSupportedToken)
		api.Get("/events", h.getEvents)
		api.Get("/accounts/{address}/balance", h.getAccountBalance)
		if opts.EventStream != nil {
			api.Handle("/events/stream", opts.EventStream)
		}

		api.Group(func(priv chi.Router) {
			priv.Use(auth)

			priv.Post("/orders", h.createOrder)
			priv.Post("/orders/cancel", h.cancelOrders)
			priv.Post("/orders/{id}/pay/native", h.payNative)
			priv.Post("/orders/{id}/pay/token", h.payToken)
			priv.Post("/orders/{id}/refund/initiate", h.initiateRefund)
			priv.Post("/orders/{id}/refund/process", h.processRefund)
			priv.Post("/tokens", h.addToken)
			priv.Post("/withdraw/native", h.withdrawNative)
			priv.Post("/withdraw/token", h.withdrawToken)

			priv.Get("/webhooks", h.listWebhooks)
			priv.Post("/webhooks", h.addWebhook)
			priv.Delete("/webhooks/{id}", h.removeWebhook)

			if opts.Faucet != nil {
				priv.Post("/faucet/mint", h.mint)
				priv.Post("/faucet/approve", h.approve)
			}
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
