// Package bootstrap assembles the top-up bot: logging, optional
// database, catalog and payment clients, the browsing flow and the
// webhook API server.
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fanfansh/topupbot/core/buildinfo"
	"github.com/fanfansh/topupbot/core/catalog"
	coreconfig "github.com/fanfansh/topupbot/core/config"
	coredatabase "github.com/fanfansh/topupbot/core/database"
	"github.com/fanfansh/topupbot/core/httpapi"
	"github.com/fanfansh/topupbot/core/logger"
	"github.com/fanfansh/topupbot/core/notify"
	"github.com/fanfansh/topupbot/core/orders"
	"github.com/fanfansh/topupbot/core/payment"
	"github.com/fanfansh/topupbot/core/shop"
	"github.com/fanfansh/topupbot/core/shop/token"
	coretelegram "github.com/fanfansh/topupbot/core/telegram"
	"github.com/fanfansh/topupbot/core/telegram/commands"
	tghelpers "github.com/fanfansh/topupbot/core/telegram/helpers"
	"github.com/fanfansh/topupbot/core/telegram/router"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// App exposes the assembled services.
type App struct {
	cfg       *coreconfig.Config
	db        *sqlx.DB
	store     orders.Store
	flow      *shop.Flow
	finalizer *shop.Finalizer

	api       *httpapi.Server
	apiErr    chan error
	startedAt time.Time
	rt        coretelegram.Runtime
}

// Run initializes the logger, connects the optional database, applies
// migrations and wires the application services.
func Run(cfg *coreconfig.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	if err := logger.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	app := &App{
		cfg:       cfg,
		store:     orders.NewMemoryStore(),
		startedAt: time.Now(),
	}

	if cfg.Database.Enabled() {
		dbCfg := databaseConfig(cfg)
		db, err := coredatabase.Connect(dbCfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		if err := coredatabase.RunMigrations(dbCfg); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
		app.db = db
		app.store = orders.NewPostgresStore(db)
	} else {
		logger.DB.Info("db disabled",
			slog.String("event", "skip"),
			slog.String("reason", "no host configured"),
		)
	}

	catalogClient := catalog.NewClientWith(cfg.Catalog.BaseURL,
		coretelegram.BuildUpstreamClient(catalog.DefaultFetchTimeout))
	paymentClient := payment.NewClientWith(cfg.Backend.BaseURL,
		coretelegram.BuildUpstreamClient(payment.DefaultInvoiceTimeout))

	app.flow = shop.NewFlow(catalogClient)
	app.finalizer = shop.NewFinalizer(catalogClient, paymentClient, app.store, shop.FinalizeConfig{
		CallbackURL: cfg.Payment.CallbackURL,
		ReturnURL:   cfg.Payment.ReturnURL,
	})

	return app, nil
}

// databaseConfig maps the config file's database section onto the
// database package's config, keeping core/config free of imports that
// would cycle back through the logger.
func databaseConfig(cfg *coreconfig.Config) coredatabase.Config {
	return coredatabase.Config{
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		User:           cfg.Database.User,
		Password:       cfg.Database.Password,
		Name:           cfg.Database.Name,
		SSLMode:        cfg.Database.SSLMode,
		MaxConnections: cfg.Database.MaxConnections,
	}
}

// Close releases infrastructure held by the app.
func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// TelegramRunOptions builds the bot runtime configuration.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg, err := a.buildRegistry()
	if err != nil {
		return coretelegram.RunOptions{}, err
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.flow, reg, router.TextOptions{})...)

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) buildRegistry() (*coretelegram.Registry, error) {
	reg := coretelegram.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Mulai menggunakan bot",
	})
	reg.RegisterCommand("/topup", commands.Command{
		Handler:     a.flow.OnTopup,
		Description: "Tampilkan daftar produk top-up",
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Statistik bot",
		AdminOnly:   true,
		Hidden:      true,
	})

	callbackHandlers := map[string]tele.HandlerFunc{
		string(token.StageCategories):  a.flow.OnCategories,
		string(token.StageBrands):      a.flow.OnBrands,
		string(token.StageProducts):    a.flow.OnProducts,
		string(token.StageDestination): a.flow.OnDestination,
		string(token.StageOrder):       a.finalizer.OnOrder,
	}
	for key, h := range callbackHandlers {
		if err := reg.RegisterCallback(key, h); err != nil {
			return nil, fmt.Errorf("bootstrap: callback %q: %w", key, err)
		}
	}

	return reg, nil
}

// onStart launches the webhook API once the bot exists: the notifier
// sends through the live bot connection.
func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	a.rt = rt

	notifier := notify.New(rt.Bot)
	a.api = httpapi.NewServer(a.cfg.API.Port, notifier, a.store)
	a.apiErr = make(chan error, 1)
	go func() {
		a.apiErr <- a.api.Run()
	}()

	logger.L.With("component", "app").InfoContext(ctx, "services ready",
		slog.String("event", "ready"),
		slog.Int("api_port", a.cfg.API.Port),
		slog.Bool("journal_persistent", a.db != nil),
	)
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	if a.api == nil {
		return nil
	}
	if err := a.api.Shutdown(ctx); err != nil {
		return err
	}
	select {
	case err := <-a.apiErr:
		return err
	default:
		return nil
	}
}

func (a *App) handleStart(c tele.Context) error {
	return tghelpers.SendText(c,
		"Selamat datang di bot top-up!\n\nGunakan /topup untuk melihat daftar produk.",
	)
}

func (a *App) handleStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)

	total, err := a.store.Count(ctx)
	if err != nil {
		return err
	}

	var sendErrors uint64
	if a.rt.Dispatcher != nil {
		sendErrors = a.rt.Dispatcher.ErrorCount()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Statistik bot\n\n")
	fmt.Fprintf(&b, "- Versi: %s (%s)\n", buildinfo.Version, buildinfo.Commit)
	fmt.Fprintf(&b, "- Uptime: %s\n", time.Since(a.startedAt).Round(time.Second))
	fmt.Fprintf(&b, "- Pesanan tercatat: %d\n", total)
	fmt.Fprintf(&b, "- Gagal kirim: %d\n", sendErrors)
	return tghelpers.SendText(c, b.String())
}
