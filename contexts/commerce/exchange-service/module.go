package exchangeservice

import (
	"log/slog"

	httpadapter "pollstack/contexts/commerce/exchange-service/adapters/http"
	"pollstack/contexts/commerce/exchange-service/adapters/memory"
	"pollstack/contexts/commerce/exchange-service/application"
	"pollstack/contexts/commerce/exchange-service/ports"
	"pollstack/internal/platform/memstore"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
}

type Dependencies struct {
	UnitOfWork ports.UnitOfWork
	Repository ports.Repository
	Reader     ports.Reader
	Ledger     ports.Ledger
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		UnitOfWork: deps.UnitOfWork,
		Repo:       deps.Repository,
		Reader:     deps.Reader,
		Ledger:     deps.Ledger,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		Logger:     deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{Service: service, Logger: deps.Logger},
		Service: service,
	}
}

func NewInMemoryModule(payments *memstore.Store, deps Dependencies) Module {
	store := memory.NewStore(payments)
	deps.Repository = store
	deps.Reader = store
	return NewModule(deps)
}
