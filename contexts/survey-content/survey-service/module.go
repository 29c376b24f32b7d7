package surveyservice

import (
	"context"
	"log/slog"
	"time"

	httpadapter "pollstack/contexts/survey-content/survey-service/adapters/http"
	"pollstack/contexts/survey-content/survey-service/adapters/memory"
	"pollstack/contexts/survey-content/survey-service/application/commands"
	"pollstack/contexts/survey-content/survey-service/application/queries"
	"pollstack/contexts/survey-content/survey-service/domain/entities"
	"pollstack/contexts/survey-content/survey-service/ports"
	"pollstack/internal/platform/memstore"
)

type Module struct {
	Handler      httpadapter.Handler
	Closer       commands.CloseUseCase
	Sweeper      commands.SweepUseCase
	Uploads      commands.UploadUseCase
	Participants commands.ParticipateUseCase
	Invalidator  commands.InvalidateUseCase
	PullUps      commands.PullUpUseCase
	Editor       commands.EditUseCase
	Deleter      commands.DeleteUseCase
	StatTickets  commands.InquireStatUseCase
	Entities     queries.EntityUseCase
	Timers       *commands.DeadlineTimers
	Repository   ports.Repository
}

type Dependencies struct {
	UnitOfWork       ports.UnitOfWork
	Repository       ports.Repository
	Reader           ports.Reader
	Ledger           ports.Ledger
	Distributor      ports.Distributor
	Clock            ports.Clock
	IDGen            ports.IDGenerator
	Metrics          ports.Metrics
	EnableTimers     bool
	TimerTimeout     time.Duration
	SweepParallelism int
	Logger           *slog.Logger
}

func NewModule(deps Dependencies) Module {
	closer := commands.CloseUseCase{
		UnitOfWork:  deps.UnitOfWork,
		Repository:  deps.Repository,
		Distributor: deps.Distributor,
		Clock:       deps.Clock,
		Logger:      deps.Logger,
	}

	var timers *commands.DeadlineTimers
	if deps.EnableTimers {
		timers = commands.NewDeadlineTimers(func(ctx context.Context, kind entities.Kind, entityID string) {
			_, _ = closer.CloseAndDistribute(ctx, commands.CloseCommand{
				EntityID:        entityID,
				Kind:            kind,
				SkipAuthorCheck: true,
			})
		}, deps.Clock, deps.TimerTimeout, deps.Logger)
		closer.Timers = timers
	}

	sweeper := commands.SweepUseCase{
		Reader:      deps.Reader,
		Closer:      closer,
		Distributor: deps.Distributor,
		Clock:       deps.Clock,
		Metrics:     deps.Metrics,
		Parallelism: deps.SweepParallelism,
		Logger:      deps.Logger,
	}
	uploads := commands.UploadUseCase{
		UnitOfWork: deps.UnitOfWork,
		Repository: deps.Repository,
		Ledger:     deps.Ledger,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		Logger:     deps.Logger,
	}
	if timers != nil {
		uploads.Timers = timers
	}
	participants := commands.ParticipateUseCase{
		UnitOfWork: deps.UnitOfWork,
		Repository: deps.Repository,
		Ledger:     deps.Ledger,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	}
	pullUps := commands.PullUpUseCase{
		UnitOfWork: deps.UnitOfWork,
		Repository: deps.Repository,
		Ledger:     deps.Ledger,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	}
	editor := commands.EditUseCase{
		UnitOfWork: deps.UnitOfWork,
		Repository: deps.Repository,
		Ledger:     deps.Ledger,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	}
	deleter := commands.DeleteUseCase{
		UnitOfWork: deps.UnitOfWork,
		Repository: deps.Repository,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	}
	if timers != nil {
		deleter.Timers = timers
	}
	statTickets := commands.InquireStatUseCase{
		UnitOfWork: deps.UnitOfWork,
		Repository: deps.Repository,
		Ledger:     deps.Ledger,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	}
	entityQueries := queries.EntityUseCase{Reader: deps.Reader}

	return Module{
		Handler: httpadapter.Handler{
			Closer:       closer,
			Sweeper:      sweeper,
			Uploads:      uploads,
			Participants: participants,
			PullUps:      pullUps,
			Editor:       editor,
			Deleter:      deleter,
			StatTickets:  statTickets,
			Entities:     entityQueries,
			Logger:       deps.Logger,
		},
		Closer:       closer,
		Sweeper:      sweeper,
		Uploads:      uploads,
		Participants: participants,
		Invalidator: commands.InvalidateUseCase{
			UnitOfWork: deps.UnitOfWork,
			Repository: deps.Repository,
			Logger:     deps.Logger,
		},
		PullUps:     pullUps,
		Editor:      editor,
		Deleter:     deleter,
		StatTickets: statTickets,
		Entities:    entityQueries,
		Timers:      timers,
		Repository:  deps.Repository,
	}
}

// NewInMemoryModule keeps researches and votes in their own memstores; the
// ledger and the lottery come from the other modules through deps.
func NewInMemoryModule(research *memstore.Store, vote *memstore.Store, deps Dependencies) Module {
	store := memory.NewStore(research, vote)
	deps.Repository = store
	deps.Reader = store
	return NewModule(deps)
}
