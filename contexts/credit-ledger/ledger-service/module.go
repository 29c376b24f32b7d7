package ledgerservice

import (
	"log/slog"

	httpadapter "pollstack/contexts/credit-ledger/ledger-service/adapters/http"
	"pollstack/contexts/credit-ledger/ledger-service/adapters/memory"
	"pollstack/contexts/credit-ledger/ledger-service/application/commands"
	"pollstack/contexts/credit-ledger/ledger-service/application/queries"
	"pollstack/contexts/credit-ledger/ledger-service/ports"
	"pollstack/internal/platform/memstore"
)

type Module struct {
	Handler     httpadapter.Handler
	Appender    commands.AppendUseCase
	Subjects    commands.OpenSubjectUseCase
	Adjustments commands.AdjustUseCase
	Balances    queries.BalanceUseCase
	History     queries.HistoryUseCase
	Audit       queries.AuditUseCase
	Repository  ports.Repository
}

type Dependencies struct {
	UnitOfWork   ports.UnitOfWork
	Repository   ports.Repository
	Reader       ports.Reader
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	Metrics      ports.Metrics
	SignupCredit int64
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	appender := commands.AppendUseCase{
		Repository: deps.Repository,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		Metrics:    deps.Metrics,
		Logger:     deps.Logger,
	}
	subjects := commands.OpenSubjectUseCase{
		UnitOfWork:   deps.UnitOfWork,
		Repository:   deps.Repository,
		Appender:     appender,
		Clock:        deps.Clock,
		SignupCredit: deps.SignupCredit,
		Logger:       deps.Logger,
	}
	adjustments := commands.AdjustUseCase{
		UnitOfWork: deps.UnitOfWork,
		Appender:   appender,
		Logger:     deps.Logger,
	}
	balances := queries.BalanceUseCase{Reader: deps.Reader}
	history := queries.HistoryUseCase{Reader: deps.Reader}
	audit := queries.AuditUseCase{Reader: deps.Reader, Logger: deps.Logger}

	return Module{
		Handler: httpadapter.Handler{
			Balances:    balances,
			History:     history,
			Audit:       audit,
			Adjustments: adjustments,
			Subjects:    subjects,
			Logger:      deps.Logger,
		},
		Appender:    appender,
		Subjects:    subjects,
		Adjustments: adjustments,
		Balances:    balances,
		History:     history,
		Audit:       audit,
		Repository:  deps.Repository,
	}
}

// NewInMemoryModule wires the ledger over a users memstore shared with
// the other modules taking part in the same units of work.
func NewInMemoryModule(
	users *memstore.Store,
	uow ports.UnitOfWork,
	clock ports.Clock,
	idGen ports.IDGenerator,
	signupCredit int64,
	logger *slog.Logger,
) Module {
	store := memory.NewStore(users)
	return NewModule(Dependencies{
		UnitOfWork:   uow,
		Repository:   store,
		Reader:       store,
		Clock:        clock,
		IDGen:        idGen,
		SignupCredit: signupCredit,
		Logger:       logger,
	})
}
