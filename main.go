package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bidding "property-auction/internal/biddingService"
	"property-auction/internal/biddingerrors"
	"property-auction/internal/config"
	"property-auction/internal/lifecycle"
	"property-auction/internal/notification"
	"property-auction/internal/repository"
	"property-auction/internal/repository/sqlite"
	"property-auction/internal/server"
	"property-auction/utils"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// backend is everything the engine, scheduler and dispatcher need from storage
type backend interface {
	repository.AuctionDB
	repository.NotificationStore
	repository.Directory
	repository.SaleRecorder
}

type seeder interface {
	AddProperty(ctx context.Context, propertyID int64) error
	AddUser(ctx context.Context, userID int64) error
}

func main() {
	if err := run(); err != nil {
		utils.Fatal("auction server stopped with error", map[string]any{"error": err.Error()})
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	utils.SetLevel(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, seeds, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	dispatcher := notification.NewDispatcher(store, notification.Options{
		Workers:     cfg.Notifications.Workers,
		QueueLength: cfg.Notifications.QueueLength,
		MaxAttempts: cfg.Notifications.MaxAttempts,
		RetryDelay:  cfg.Notifications.RetryDelay,
	})
	defer dispatcher.Close()

	biddingSvc := bidding.NewBiddingService(store, store, dispatcher, bidding.Options{
		MaxRetries:       cfg.Bidding.MaxRetries,
		RetryDelay:       cfg.Bidding.RetryDelay,
		DefaultIncrement: cfg.Bidding.Increment(),
		Currency:         cfg.Bidding.Currency,
	})
	scheduler := lifecycle.NewScheduler(store, store, dispatcher, cfg.Scheduler.SweepInterval)

	if cfg.Seed {
		if err := prepopulate(ctx, seeds, biddingSvc); err != nil {
			return err
		}
	}

	router := server.SetupRouter(biddingSvc, scheduler, dispatcher)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		utils.Info("starting auction server", map[string]any{"addr": srv.Addr, "database": cfg.Database.Path})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		utils.Info("shutting down auction server", nil)
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStore picks SQLite when a database path is configured and the in-memory repo otherwise
func openStore(ctx context.Context, cfg *config.Config) (backend, seeder, func(), error) {
	if cfg.Database.Path == "" {
		repo := repository.NewMemoryRepo()
		utils.Warn("no database path configured, state is kept in memory", nil)
		return repo, memorySeeder{repo}, func() {}, nil
	}

	store, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			utils.Error("failed to close database", map[string]any{"error": err.Error()})
		}
	}
	return store, store, closeStore, nil
}

type memorySeeder struct {
	repo *repository.MemoryRepo
}

func (m memorySeeder) AddProperty(_ context.Context, propertyID int64) error {
	m.repo.AddProperty(propertyID)
	return nil
}

func (m memorySeeder) AddUser(_ context.Context, userID int64) error {
	m.repo.AddUser(userID)
	return nil
}

// prepopulate adds sample listings, users and one open auction
func prepopulate(ctx context.Context, seeds seeder, svc *bidding.BiddingService) error {
	for id := int64(1); id <= 3; id++ {
		if err := seeds.AddProperty(ctx, id); err != nil {
			return fmt.Errorf("seed property %d: %w", id, err)
		}
		if err := seeds.AddUser(ctx, id); err != nil {
			return fmt.Errorf("seed user %d: %w", id, err)
		}
	}

	now := time.Now().UTC()
	increment := decimal.NewFromInt(50)
	_, err := svc.CreateAuction(ctx, bidding.CreateAuctionParams{
		PropertyID:       1,
		StartTime:        now,
		EndTime:          now.Add(time.Hour),
		MinimumBid:       decimal.NewFromInt(1000),
		MinimumIncrement: &increment,
	}, now)
	if err != nil && !errors.Is(err, biddingerrors.ErrAuctionExists) {
		return fmt.Errorf("seed auction: %w", err)
	}
	return nil
}
