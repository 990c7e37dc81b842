package client

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"tradeclient/src/connectors"
	"tradeclient/src/engine"
	"tradeclient/src/ledger"
	"tradeclient/src/marketdata"
	"tradeclient/src/model"
	"tradeclient/src/repository"
	"tradeclient/src/scheduler"
	"tradeclient/src/security"
	"tradeclient/src/server"
	"tradeclient/src/session"
	"tradeclient/src/store"
)

// Run wires the core components, recovers in-flight positions, and serves
// the intent API until shutdown. Blocks.
func Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := GetConfig()
	engCfg := engine.GetConfig()
	connCfg := connectors.GetConfig()
	feedCfg := marketdata.GetConfig()

	repo := repository.NewSessionRepository()

	token, err := resolveToken(ctx, cfg, repo)
	if err != nil {
		return err
	}

	pair, err := repo.Get(ctx, model.SessionKeySelectedPair)
	if err != nil || pair == "" {
		pair = cfg.DefaultPair
	}

	state := session.New(token, pair)
	state.SetAdmin(cfg.IsAdmin())

	ledgerClient := connectors.NewLedgerClient(connCfg.LedgerBaseURL, connCfg.LedgerTimeout, state)
	positions := store.NewPositionStore(repo, engCfg.MaxOpenPos)
	feed := marketdata.NewFeed(connectors.NewMarketClient(), state, feedCfg)
	reconciler := ledger.NewBalanceReconciler(ledgerClient, state)

	eng := engine.NewSettlementEngine(engCfg, positions, feed, ledgerClient, reconciler, state)
	sched := scheduler.NewExpiryScheduler(eng, positions, engCfg.SweepInterval)
	eng.SetTimerControl(sched)

	go reconciler.Start(ctx)
	go feed.Start(ctx)
	if feedCfg.EnableStream {
		stream := connectors.NewTickerStream(connCfg.MarketWSBaseURL, connCfg.MarketWSTimeout)
		go feed.RunStream(ctx, stream)
	}

	// Reload recovery: local snapshot first, then whatever the ledger still
	// considers open, then arm timers (missed deadlines settle immediately).
	if err := positions.Load(ctx); err != nil {
		logger.WithError(err).Warn("could not load persisted positions")
	}
	if state.Authenticated() {
		if _, err := eng.RefreshBalance(ctx); err != nil {
			logger.WithError(err).Warn("could not fetch authoritative balance at startup")
		}
		if err := eng.SyncRemote(ctx); err != nil {
			logger.WithError(err).Warn("could not reconcile remote positions at startup")
		}
	}
	sched.Recover()
	go sched.Start(ctx)

	router := server.NewRouter(eng, positions, state, repo, ledgerClient)
	server.StartServer(server.GetConfig().Port, router)
	return nil
}

// resolveToken prefers a token from the environment (persisting it encrypted
// for the next run), falling back to the one a previous session stored.
func resolveToken(ctx context.Context, cfg Config, repo *repository.SessionRepository) (string, error) {
	if cfg.AccessToken != "" {
		sealed, err := security.EncryptString(cfg.AccessToken)
		if err != nil {
			return "", err
		}
		if err := repo.Put(ctx, model.SessionKeyAccessToken, sealed); err != nil {
			logger.WithError(err).Warn("could not persist session token")
		}
		return cfg.AccessToken, nil
	}

	sealed, err := repo.Get(ctx, model.SessionKeyAccessToken)
	if err != nil || sealed == "" {
		return "", err
	}

	token, err := security.DecryptString(sealed)
	if err != nil {
		logger.WithError(err).Warn("persisted session token unreadable, starting unauthenticated")
		return "", nil
	}
	return token, nil
}
