package bootstrap

import (
	"context"
	"log/slog"
	"os"
	"strings"

	exchangeservice "pollstack/contexts/commerce/exchange-service"
	exchangememory "pollstack/contexts/commerce/exchange-service/adapters/memory"
	exchangepostgres "pollstack/contexts/commerce/exchange-service/adapters/postgres"
	exchangeports "pollstack/contexts/commerce/exchange-service/ports"
	ledgerservice "pollstack/contexts/credit-ledger/ledger-service"
	ledgermemory "pollstack/contexts/credit-ledger/ledger-service/adapters/memory"
	ledgerpostgres "pollstack/contexts/credit-ledger/ledger-service/adapters/postgres"
	ledgerports "pollstack/contexts/credit-ledger/ledger-service/ports"
	lotteryservice "pollstack/contexts/credit-ledger/lottery-service"
	lotteryevents "pollstack/contexts/credit-ledger/lottery-service/adapters/events"
	lotterymemory "pollstack/contexts/credit-ledger/lottery-service/adapters/memory"
	lotterypostgres "pollstack/contexts/credit-ledger/lottery-service/adapters/postgres"
	lotteryentities "pollstack/contexts/credit-ledger/lottery-service/domain/entities"
	lotteryports "pollstack/contexts/credit-ledger/lottery-service/ports"
	surveyservice "pollstack/contexts/survey-content/survey-service"
	surveymemory "pollstack/contexts/survey-content/survey-service/adapters/memory"
	surveypostgres "pollstack/contexts/survey-content/survey-service/adapters/postgres"
	surveyports "pollstack/contexts/survey-content/survey-service/ports"
	"pollstack/internal/app/bridges"
	"pollstack/internal/platform/config"
	"pollstack/internal/platform/db"
	"pollstack/internal/platform/ids"
	"pollstack/internal/platform/memstore"
	"pollstack/internal/platform/messaging"
	"pollstack/internal/platform/metrics"
	"pollstack/internal/platform/notify"
	"pollstack/internal/platform/txcoord"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type Clock interface {
	ledgerports.Clock
}

type IDGenerator interface {
	ledgerports.IDGenerator
}

// Options override process defaults. Tests inject clocks, ids and draws.
type Options struct {
	Clock    Clock
	IDGen    IDGenerator
	Random   lotteryentities.RandomSource
	Notifier notify.Notifier
}

// Container holds every wired module sharing one coordinator.
type Container struct {
	Config      config.Config
	Coordinator *txcoord.Coordinator
	Ledger      ledgerservice.Module
	Lottery     lotteryservice.Module
	Surveys     surveyservice.Module
	Exchange    exchangeservice.Module
	Bus         *messaging.Bus
	Metrics     *metrics.Registry
	Notifier    bridges.WinnersNotifier
	Memory      *MemoryStores
	Logger      *slog.Logger

	stores *db.Stores
}

// MemoryStores exposes the in-process stores so tests can seed and fault them.
type MemoryStores struct {
	Users    *memstore.Store
	Payments *memstore.Store
	Research *memstore.Store
	Vote     *memstore.Store
}

type repositories struct {
	ledger       ledgerports.Repository
	ledgerReader ledgerports.Reader
	draws        lotteryports.Draws
	drawReader   lotteryports.DrawReader
	surveys      surveyports.Repository
	surveyReader surveyports.Reader
	orders       exchangeports.Repository
	orderReader  exchangeports.Reader
}

// Build wires Postgres stores when any DSN is configured, memstores otherwise.
func Build(cfg config.Config, logger *slog.Logger, opts Options) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InMemory() {
		logger.Warn("no store dsn configured, running on in-memory stores",
			"event", "bootstrap_in_memory",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return BuildInMemory(cfg, logger, opts), nil
	}
	return buildPostgres(cfg, logger, opts)
}

func BuildInMemory(cfg config.Config, logger *slog.Logger, opts Options) *Container {
	mem := &MemoryStores{
		Users:    memstore.New(txcoord.StoreUsers),
		Payments: memstore.New(txcoord.StorePayments),
		Research: memstore.New(txcoord.StoreResearch),
		Vote:     memstore.New(txcoord.StoreVote),
	}
	ledgerStore := ledgermemory.NewStore(mem.Users)
	drawStore := lotterymemory.NewStore(mem.Users)
	surveyStore := surveymemory.NewStore(mem.Research, mem.Vote)
	orderStore := exchangememory.NewStore(mem.Payments)

	stores := []txcoord.Store{mem.Users, mem.Payments, mem.Research, mem.Vote}
	c := wire(cfg, logger, opts, stores, repositories{
		ledger:       ledgerStore,
		ledgerReader: ledgerStore,
		draws:        drawStore,
		drawReader:   drawStore,
		surveys:      surveyStore,
		surveyReader: surveyStore,
		orders:       orderStore,
		orderReader:  orderStore,
	})
	c.Memory = mem
	return c
}

func buildPostgres(cfg config.Config, logger *slog.Logger, opts Options) (*Container, error) {
	dsns := map[txcoord.StoreID]string{
		txcoord.StoreUsers:    cfg.UsersDSN,
		txcoord.StorePayments: cfg.PaymentsDSN,
		txcoord.StoreResearch: cfg.ResearchDSN,
		txcoord.StoreVote:     cfg.VoteDSN,
	}
	if cfg.AutoMigrate {
		for _, id := range []txcoord.StoreID{txcoord.StoreUsers, txcoord.StorePayments, txcoord.StoreResearch, txcoord.StoreVote} {
			if err := db.Migrate(dsns[id], id); err != nil {
				return nil, err
			}
		}
	}

	pg, err := db.ConnectAll(dsns, db.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	ledgerRepo := ledgerpostgres.NewRepository(pg.Users.DB, logger)
	drawRepo := lotterypostgres.NewRepository(pg.Users.DB, logger)
	surveyRepo := surveypostgres.NewRepository(pg.Research.DB, pg.Vote.DB, logger)
	orderRepo := exchangepostgres.NewRepository(pg.Payments.DB, logger)

	c := wire(cfg, logger, opts, pg.Sessions(logger), repositories{
		ledger:       ledgerRepo,
		ledgerReader: ledgerRepo,
		draws:        drawRepo,
		drawReader:   drawRepo,
		surveys:      surveyRepo,
		surveyReader: surveyRepo,
		orders:       orderRepo,
		orderReader:  orderRepo,
	})
	c.stores = pg
	return c, nil
}

func wire(cfg config.Config, logger *slog.Logger, opts Options, stores []txcoord.Store, repos repositories) *Container {
	var clock Clock = ids.SystemClock{}
	if opts.Clock != nil {
		clock = opts.Clock
	}
	var idGen IDGenerator = ids.UUIDGenerator{}
	if opts.IDGen != nil {
		idGen = opts.IDGen
	}

	registry := metrics.New()
	bus := messaging.NewBus(256, logger)
	coordinator := txcoord.New(stores,
		txcoord.WithPolicy(txcoord.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Budget:      cfg.Retry.Budget,
			BaseBackoff: cfg.Retry.BaseBackoff,
			MaxBackoff:  cfg.Retry.MaxBackoff,
		}),
		txcoord.WithLogger(logger),
		txcoord.WithRecorder(registry),
	)

	ledger := ledgerservice.NewModule(ledgerservice.Dependencies{
		UnitOfWork:   coordinator,
		Repository:   repos.ledger,
		Reader:       repos.ledgerReader,
		Clock:        clock,
		IDGen:        idGen,
		Metrics:      registry,
		SignupCredit: cfg.SignupCredit,
		Logger:       logger,
	})

	lottery := lotteryservice.NewModule(lotteryservice.Dependencies{
		UnitOfWork: coordinator,
		Entities:   bridges.LotteryEntities{Repository: repos.surveys},
		Ledger:     bridges.LotteryLedger{Appender: ledger.Appender, Repository: ledger.Repository},
		Draws:      repos.draws,
		DrawReader: repos.drawReader,
		Publisher: lotteryevents.Publisher{
			Bus:    bus,
			Clock:  clock,
			IDGen:  idGen,
			Logger: logger,
		},
		Random:  opts.Random,
		Clock:   clock,
		IDGen:   idGen,
		Metrics: registry,
		Logger:  logger,
	})

	surveys := surveyservice.NewModule(surveyservice.Dependencies{
		UnitOfWork:       coordinator,
		Repository:       repos.surveys,
		Reader:           repos.surveyReader,
		Ledger:           bridges.SurveyLedger{Appender: ledger.Appender, Repository: ledger.Repository},
		Distributor:      bridges.SurveyDistributor{Distributor: lottery.Distributor},
		Clock:            clock,
		IDGen:            idGen,
		Metrics:          registry,
		EnableTimers:     cfg.EnableTimers,
		TimerTimeout:     cfg.TimerTimeout,
		SweepParallelism: cfg.SweepParallelism,
		Logger:           logger,
	})

	exchange := exchangeservice.NewModule(exchangeservice.Dependencies{
		UnitOfWork: coordinator,
		Repository: repos.orders,
		Reader:     repos.orderReader,
		Ledger:     bridges.ExchangeLedger{Appender: ledger.Appender, Repository: ledger.Repository},
		Clock:      clock,
		IDGen:      idGen,
		Logger:     logger,
	})

	return &Container{
		Config:      cfg,
		Coordinator: coordinator,
		Ledger:      ledger,
		Lottery:     lottery,
		Surveys:     surveys,
		Exchange:    exchange,
		Bus:         bus,
		Metrics:     registry,
		Notifier: bridges.WinnersNotifier{
			Bus:      bus,
			Notifier: buildNotifier(cfg, logger, opts.Notifier),
			Metrics:  registry,
			Logger:   logger,
		},
		Logger: logger,
	}
}

func buildNotifier(cfg config.Config, logger *slog.Logger, override notify.Notifier) notify.Notifier {
	if override != nil {
		return override
	}
	var next notify.Notifier = notify.LogNotifier{Logger: logger}
	if strings.TrimSpace(cfg.NotifyWebhookURL) != "" {
		next = notify.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyTimeout)
	}
	return notify.NewThrottled(next, cfg.NotifyRatePerSec, cfg.NotifyBurst)
}

// Ping checks the Postgres stores. In-memory containers are always ready.
func (c *Container) Ping(ctx context.Context) error {
	if c.stores == nil {
		return nil
	}
	return c.stores.Ping(ctx)
}

// Close stops deadline timers and releases store connections.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Surveys.Timers != nil {
		c.Surveys.Timers.Stop()
	}
	if c.stores != nil {
		return c.stores.Close()
	}
	return nil
}

// NewLogger builds the process JSON logger at the configured level.
func NewLogger(cfg config.Config, process string) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", cfg.ServiceName, "process", process)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
