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

	"github.com/ZIKOpl/ZIKO-SHOP/internal/application/admin"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/application/display"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/application/fulfillment"
	appInventory "github.com/ZIKOpl/ZIKO-SHOP/internal/application/inventory"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/application/notification"
	appOrder "github.com/ZIKOpl/ZIKO-SHOP/internal/application/order"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/config"
	domdisplay "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/display"
	domfulfillment "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/fulfillment"
	dominv "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/discord"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/filestore"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/id"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/identity"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/memory"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/natsink"
	infraobs "github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/observability/oteltrace"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/observability/prometrics"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/observability/telemetry"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/observability/zaplogger"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/outbox"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/redisstore"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/sqlite"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/pkg/logging"
	httppresentation "github.com/ZIKOpl/ZIKO-SHOP/internal/presentation/http"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/presentation/interaction"
	workerpresentation "github.com/ZIKOpl/ZIKO-SHOP/internal/presentation/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   os.Getenv("LOG_LEVEL"),
		File:    os.Getenv("LOG_FILE"),
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	if err := run(cfg, baseLogger); err != nil {
		systemLogger.Error("shop_exit", zap.Error(err))
		_ = baseLogger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, baseLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.Env, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(flushCtx)
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	logger := zaplogger.New(baseLogger)
	tel := infraobs.FromRegistry(oteltrace.New(cfg.ServiceName), logger, prometrics.New("", registry))
	log := logger.With(observability.F("component", "main"))

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	ledger, err := appInventory.Open(ctx, st.ledger, cfg.Catalog, tel)
	if err != nil {
		return err
	}
	displayRegistry, err := display.LoadRegistry(ctx, st.display)
	if err != nil {
		return err
	}

	session, err := discord.NewSession(cfg.DiscordToken)
	if err != nil {
		return err
	}
	platform := discord.NewPlatform(session, discord.Config{GuildID: cfg.GuildID, StaffRoleID: cfg.StaffRoleID})
	branding := display.Branding{ShopName: cfg.ShopName, Currency: cfg.Currency}

	bus := outbox.NewBus(logger)
	events := workerpresentation.Instrument(bus, tel)

	synchronizer := display.NewSynchronizer(ledger, platform, displayRegistry, display.Config{
		ChannelID: cfg.StockChannelID,
		Branding:  branding,
		Timeout:   cfg.PlatformTimeout,
	}, tel)
	synchronizer.Subscribe(events)

	tickets := fulfillment.NewManager(platform, st.tickets, fulfillment.Config{
		CategoryID:  cfg.CategoryID,
		StaffRoleID: cfg.StaffRoleID,
		Branding:    branding,
		Timeout:     cfg.PlatformTimeout,
	}, tel)
	tickets.Subscribe(events)

	var sinks []notification.Sink
	if cfg.OrdersChannelID != "" {
		sinks = append(sinks, notification.NewChatSink(platform, cfg.OrdersChannelID, branding))
	}
	if cfg.NATSURL != "" {
		nc, err := natsink.Connect(cfg.NATSURL, cfg.ServiceName)
		if err != nil {
			return err
		}
		defer nc.Close()
		sink, err := natsink.New(ctx, nc, natsink.Config{})
		if err != nil {
			return err
		}
		sinks = append(sinks, sink)
	}
	if len(sinks) > 0 {
		notification.NewDispatcher(notification.Config{Timeout: cfg.PlatformTimeout}, tel, sinks...).Subscribe(events)
	}

	announcer := admin.NewAnnouncer(platform, cfg.Catalog, admin.AnnouncerConfig{
		ChannelID: cfg.StockChannelID,
		TTL:       cfg.RestockAnnounceTTL,
		Timeout:   cfg.PlatformTimeout,
	}, tel)
	announcer.Subscribe(events)

	surface := admin.NewSurface(ledger, platform, displayRegistry, bus, admin.Config{
		ChannelID: cfg.AdminChannelID,
		Branding:  branding,
		Timeout:   cfg.PlatformTimeout,
	}, tel)

	bus.Start(ctx)

	gateway := discord.NewGateway(session, interaction.NewRouter(surface, tickets, tel), tel)
	if err := gateway.Open(); err != nil {
		return err
	}
	defer func() { _ = gateway.Close() }()

	if err := surface.PublishPanel(ctx); err != nil {
		log.Warn("admin_panel_publish_failed", observability.F("error", err))
	}
	go synchronizer.Run(ctx, cfg.DisplaySyncInterval)

	var exchanger httppresentation.IdentityExchanger
	if cfg.OAuthEnabled() {
		exchanger = identity.NewExchanger(identity.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
		}, tel)
	}
	placeOrder := appOrder.NewPlaceOrderUseCase(ledger, id.NewUUIDGenerator(), bus, tel)
	handler := httppresentation.NewHandler(placeOrder, ledger, exchanger, httppresentation.Config{
		SharedSecret: cfg.SharedSecret,
		ShopPageURL:  cfg.ShopPageURL,
		Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, tel)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("http_server_start", observability.F("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Error("http_server_error", observability.F("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http_server_shutdown_error", observability.F("error", err))
	} else {
		log.Info("http_server_stopped")
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Warn("event_bus_stop_error", observability.F("error", err))
	}
	announcer.Flush()
	return nil
}

type stores struct {
	ledger  dominv.Store
	display domdisplay.StateStore
	tickets domfulfillment.Repository
	close   func()
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &stores{ledger: s, display: s, tickets: s.Tickets(), close: func() { _ = s.Close() }}, nil
	case config.BackendRedis:
		s, err := redisstore.New(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.Ping(pingCtx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return &stores{ledger: s, display: s, tickets: memory.NewTicketRepository(), close: func() { _ = s.Close() }}, nil
	case config.BackendMemory:
		s := memory.NewStore()
		return &stores{ledger: s, display: s, tickets: memory.NewTicketRepository(), close: func() {}}, nil
	default:
		s, err := filestore.Open(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return &stores{ledger: s, display: s, tickets: memory.NewTicketRepository(), close: func() {}}, nil
	}
}
