package lotteryservice

import (
	"log/slog"

	"pollstack/contexts/credit-ledger/lottery-service/adapters/memory"
	"pollstack/contexts/credit-ledger/lottery-service/adapters/random"
	"pollstack/contexts/credit-ledger/lottery-service/application/commands"
	"pollstack/contexts/credit-ledger/lottery-service/application/queries"
	"pollstack/contexts/credit-ledger/lottery-service/domain/entities"
	"pollstack/contexts/credit-ledger/lottery-service/ports"
	"pollstack/internal/platform/memstore"

	"golang.org/x/sync/singleflight"
)

type Module struct {
	Distributor commands.DistributeUseCase
	Draws       queries.DrawUseCase
}

type Dependencies struct {
	UnitOfWork ports.UnitOfWork
	Entities   ports.Entities
	Ledger     ports.Ledger
	Draws      ports.Draws
	DrawReader ports.DrawReader
	Publisher  ports.Publisher
	Random     entities.RandomSource
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	rng := deps.Random
	if rng == nil {
		rng = random.NewSource()
	}
	return Module{
		Distributor: commands.DistributeUseCase{
			UnitOfWork: deps.UnitOfWork,
			Entities:   deps.Entities,
			Ledger:     deps.Ledger,
			Draws:      deps.Draws,
			Publisher:  deps.Publisher,
			Random:     rng,
			Coalescer:  &singleflight.Group{},
			Clock:      deps.Clock,
			IDGen:      deps.IDGen,
			Metrics:    deps.Metrics,
			Logger:     deps.Logger,
		},
		Draws: queries.DrawUseCase{Draws: deps.DrawReader},
	}
}

// NewInMemoryModule keeps draw records in the users memstore; entity and
// ledger access come from the other modules through deps.
func NewInMemoryModule(users *memstore.Store, deps Dependencies) Module {
	store := memory.NewStore(users)
	deps.Draws = store
	deps.DrawReader = store
	return NewModule(deps)
}
