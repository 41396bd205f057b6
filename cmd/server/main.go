package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/dining-table-reservation/internal/booking"
	"github.com/iliyamo/dining-table-reservation/internal/booking/memstore"
	"github.com/iliyamo/dining-table-reservation/internal/config"
	"github.com/iliyamo/dining-table-reservation/internal/database"
	"github.com/iliyamo/dining-table-reservation/internal/handler"
	"github.com/iliyamo/dining-table-reservation/internal/model"
	"github.com/iliyamo/dining-table-reservation/internal/queue"
	"github.com/iliyamo/dining-table-reservation/internal/repository"
	"github.com/iliyamo/dining-table-reservation/internal/router"
)

// stores is the persistence wiring picked by STORE_DRIVER.
type stores struct {
	booking booking.Store
	slots   handler.SlotAdmin
	users   handler.UserStore
	tokens  handler.TokenStore
	pinger  handler.Pinger
	close   func()
}

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer st.close()

	if err := bootstrapAdmin(ctx, cfg, st.users); err != nil {
		logger.Fatal("bootstrap admin", zap.Error(err))
	}

	rdb := config.NewRedisClient(ctx, config.LoadRedisConfig(), logger)
	var locker booking.Locker = booking.NewLocalLocker()
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		locker = booking.NewRedisLocker(rdb, cfg.Booking.LockPrefix, cfg.Booking.LockTTL, cfg.Booking.LockWait)
	}

	engine := booking.NewEngine(st.booking, locker, booking.Options{
		DailyLimit:   cfg.Booking.DailyLimit,
		MaxAttempts:  cfg.Booking.MaxAttempts,
		RetryBackoff: cfg.Booking.RetryBackoff,
	}, logger.Named("booking"))

	var events queue.Publisher = queue.NopPublisher{}
	if cfg.Queue.Enabled {
		pub := queue.NewAMQPPublisher(cfg.Queue.URL, cfg.Queue.Name, logger.Named("queue"))
		defer func() { _ = pub.Close() }()
		events = pub
	}

	e := router.New(router.Deps{
		Logger:       logger.Named("http"),
		DB:           st.pinger,
		Redis:        rdb,
		JWTSecret:    cfg.JWTSecret,
		RateLimit:    config.LoadRateLimitConfig(),
		Cache:        config.LoadCacheConfig(),
		Auth:         handler.NewAuthHandler(cfg, st.users, st.tokens),
		TimeSlots:    handler.NewTimeSlotHandler(engine, st.slots, nil),
		Reservations: handler.NewReservationHandler(engine, events, logger.Named("reservations")),
		Dashboard:    handler.NewDashboardHandler(engine),
	})

	g, gctx := errgroup.WithContext(ctx)
	addr := ":" + cfg.Port
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver), zap.Bool("redis", rdb != nil))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Queue.Enabled {
		g.Go(func() error {
			return queue.StartReservationConsumer(gctx, cfg.Queue, logger.Named("consumer"))
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.StoreDriver == config.StoreMemory {
		mem := memstore.New()
		for _, s := range defaultSlots() {
			s := s
			if err := mem.CreateSlot(ctx, &s); err != nil {
				return nil, err
			}
		}
		logger.Warn("using in-memory store, data is lost on restart")
		return &stores{
			booking: mem,
			slots:   mem,
			users:   mem.Users(),
			tokens:  memstore.NewTokens(),
			close:   func() {},
		}, nil
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, err
	}
	if cfg.MigrationsAuto {
		if err := database.Migrate(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	store := repository.NewStore(db)
	return &stores{
		booking: store,
		slots:   store,
		users:   repository.NewUserRepo(db),
		tokens:  repository.NewTokenRepo(db),
		pinger:  db,
		close:   func() { _ = db.Close() },
	}, nil
}

// defaultSlots matches the rows seeded by the initial migration.
func defaultSlots() []model.TimeSlot {
	return []model.TimeSlot{
		{StartTime: "12:00:00", EndTime: "13:30:00", Label: "Lunch 12:00", MaxTables: 6, IsActive: true},
		{StartTime: "13:30:00", EndTime: "15:00:00", Label: "Lunch 13:30", MaxTables: 6, IsActive: true},
		{StartTime: "19:00:00", EndTime: "20:30:00", Label: "Dinner 19:00", MaxTables: 6, IsActive: true},
		{StartTime: "20:30:00", EndTime: "22:00:00", Label: "Dinner 20:30", MaxTables: 6, IsActive: true},
	}
}

// bootstrapAdmin creates the ADMIN_EMAIL account when it does not exist yet.
func bootstrapAdmin(ctx context.Context, cfg config.Config, users handler.UserStore) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	_, err := users.GetByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}
	_, err = users.Create(ctx, cfg.AdminEmail, cfg.AdminName, cfg.AdminPassword, model.RoleAdmin, cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return nil
	}
	return err
}

