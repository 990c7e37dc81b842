package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"tradeclient/src/connectors"
	"tradeclient/src/engine"
	"tradeclient/src/handler"
	"tradeclient/src/model"
	"tradeclient/src/repository"
	"tradeclient/src/session"
	"tradeclient/src/store"
)

// NewRouter wires the local intent API the presentation layer calls.
func NewRouter(
	eng *engine.SettlementEngine,
	positions *store.PositionStore,
	state *session.State,
	repo *repository.SessionRepository,
	ledgerClient *connectors.LedgerClient,
) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck error")
		}
	})

	r.Route("/api/trade", func(r chi.Router) {
		r.Post("/open", handler.OpenPositionHandler(eng))
		r.Post("/close", handler.ClosePositionHandler(eng))
		r.Get("/positions", handler.ListPositionsHandler(eng, positions))
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Get("/balance", handler.BalanceHandler(eng))
		r.Post("/deposit", handler.DepositHandler(eng))
		r.Post("/withdraw", handler.WithdrawHandler(eng))
		r.Post("/pair", handler.SelectPairHandler(state, repo, model.SessionKeySelectedPair))
		r.Get("/history", handler.TradeHistoryHandler(ledgerClient))
		r.Post("/logout", handler.LogoutHandler(eng))
	})

	return r
}

// StartServer serves the intent API until SIGINT/SIGTERM, then shuts down
// gracefully.
func StartServer(port string, h http.Handler) {
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: h,
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
