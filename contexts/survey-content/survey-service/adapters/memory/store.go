package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pollstack/contexts/survey-content/survey-service/domain/entities"
	domainerrors "pollstack/contexts/survey-content/survey-service/domain/errors"
	"pollstack/contexts/survey-content/survey-service/ports"
	"pollstack/internal/platform/memstore"
	"pollstack/internal/platform/txcoord"
)

const (
	collectionEntities       = "entities"
	collectionParticipations = "participations"
	collectionStatTickets    = "stat_tickets"
)

var errVersionMoved = errors.New("entity version moved")

// Store keeps researches in the research memstore and votes in the vote
// memstore, each with its participations.
type Store struct {
	research *memstore.Store
	vote     *memstore.Store
}

func NewStore(research *memstore.Store, vote *memstore.Store) *Store {
	return &Store{research: research, vote: vote}
}

func participationKey(entityID string, subjectID string) string {
	return entityID + "|" + subjectID
}

func (s *Store) backing(kind entities.Kind) *memstore.Store {
	if kind == entities.KindVote {
		return s.vote
	}
	return s.research
}

func (s *Store) session(sessions ports.Sessions, kind entities.Kind) (*memstore.Session, error) {
	sess, err := sessions.Get(ports.StoreFor(kind))
	if err != nil {
		return nil, err
	}
	return memstore.AsSession(sess)
}

func (s *Store) LoadEntity(_ context.Context, sessions ports.Sessions, kind entities.Kind, entityID string) (entities.Entity, error) {
	sess, err := s.session(sessions, kind)
	if err != nil {
		return entities.Entity{}, err
	}
	entity, err := memstore.Get[entities.Entity](sess, collectionEntities, entityID)
	if err != nil {
		if txcoord.IsNotFound(err) {
			return entities.Entity{}, domainerrors.ErrEntityNotFound
		}
		return entities.Entity{}, err
	}
	return entity, nil
}

func (s *Store) CreateEntity(_ context.Context, sessions ports.Sessions, entity entities.Entity) error {
	sess, err := s.session(sessions, entity.Kind)
	if err != nil {
		return err
	}
	if err := sess.Insert(collectionEntities, entity.EntityID, entity); err != nil {
		if txcoord.KindOf(err) == txcoord.KindConflict {
			return domainerrors.ErrEntityAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) UpdateEntity(ctx context.Context, sessions ports.Sessions, entity entities.Entity, expectedVersion int64) error {
	sess, err := s.session(sessions, entity.Kind)
	if err != nil {
		return err
	}
	current, err := s.LoadEntity(ctx, sessions, entity.Kind, entity.EntityID)
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		return txcoord.NewStoreError(ports.StoreFor(entity.Kind), txcoord.KindConflict, "update_entity",
			fmt.Errorf("%w: have %d, expected %d", errVersionMoved, current.Version, expectedVersion))
	}
	return sess.Put(collectionEntities, entity.EntityID, entity)
}

func (s *Store) FindParticipation(
	_ context.Context,
	sessions ports.Sessions,
	kind entities.Kind,
	entityID string,
	subjectID string,
) (entities.Participation, bool, error) {
	sess, err := s.session(sessions, kind)
	if err != nil {
		return entities.Participation{}, false, err
	}
	participation, err := memstore.Get[entities.Participation](sess, collectionParticipations, participationKey(entityID, subjectID))
	if err != nil {
		if txcoord.IsNotFound(err) {
			return entities.Participation{}, false, nil
		}
		return entities.Participation{}, false, err
	}
	return participation, true, nil
}

func (s *Store) InsertParticipation(_ context.Context, sessions ports.Sessions, participation entities.Participation) error {
	sess, err := s.session(sessions, participation.Kind)
	if err != nil {
		return err
	}
	key := participationKey(participation.EntityID, participation.SubjectID)
	if err := sess.Insert(collectionParticipations, key, participation); err != nil {
		if txcoord.KindOf(err) == txcoord.KindConflict {
			return domainerrors.ErrAlreadyParticipated
		}
		return err
	}
	return nil
}

func (s *Store) UpdateParticipation(_ context.Context, sessions ports.Sessions, participation entities.Participation) error {
	sess, err := s.session(sessions, participation.Kind)
	if err != nil {
		return err
	}
	return sess.Put(collectionParticipations, participationKey(participation.EntityID, participation.SubjectID), participation)
}

func (s *Store) ListParticipations(_ context.Context, sessions ports.Sessions, kind entities.Kind, entityID string) ([]entities.Participation, error) {
	sess, err := s.session(sessions, kind)
	if err != nil {
		return nil, err
	}
	items, err := memstore.List(sess, collectionParticipations, func(p entities.Participation) bool {
		return p.EntityID == entityID
	})
	if err != nil {
		return nil, err
	}
	sortParticipations(items)
	return items, nil
}

func (s *Store) HasStatTicket(_ context.Context, sessions ports.Sessions, entityID string, subjectID string) (bool, error) {
	sess, err := s.session(sessions, entities.KindVote)
	if err != nil {
		return false, err
	}
	_, err = memstore.Get[entities.StatTicket](sess, collectionStatTickets, participationKey(entityID, subjectID))
	if err != nil {
		if txcoord.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) InsertStatTicket(_ context.Context, sessions ports.Sessions, ticket entities.StatTicket) error {
	sess, err := s.session(sessions, entities.KindVote)
	if err != nil {
		return err
	}
	return sess.Insert(collectionStatTickets, participationKey(ticket.EntityID, ticket.SubjectID), ticket)
}

func (s *Store) GetEntity(_ context.Context, kind entities.Kind, entityID string) (entities.Entity, error) {
	entity, err := memstore.Read[entities.Entity](s.backing(kind), collectionEntities, entityID)
	if err != nil {
		if txcoord.IsNotFound(err) {
			return entities.Entity{}, domainerrors.ErrEntityNotFound
		}
		return entities.Entity{}, err
	}
	return entity, nil
}

func (s *Store) ListDueForClosure(_ context.Context, kind entities.Kind, now time.Time, limit int) ([]entities.Entity, error) {
	return s.filter(kind, limit, func(e entities.Entity) bool { return e.DueForClosure(now) })
}

func (s *Store) ListAwaitingDistribution(_ context.Context, kind entities.Kind, now time.Time, limit int) ([]entities.Entity, error) {
	return s.filter(kind, limit, func(e entities.Entity) bool { return e.AwaitingDistribution(now) })
}

func (s *Store) ListEntityParticipations(_ context.Context, kind entities.Kind, entityID string) ([]entities.Participation, error) {
	all, err := memstore.ReadAll[entities.Participation](s.backing(kind), collectionParticipations)
	if err != nil {
		return nil, err
	}
	out := make([]entities.Participation, 0, len(all))
	for _, p := range all {
		if p.EntityID == entityID {
			out = append(out, p)
		}
	}
	sortParticipations(out)
	return out, nil
}

func (s *Store) filter(kind entities.Kind, limit int, keep func(entities.Entity) bool) ([]entities.Entity, error) {
	all, err := memstore.ReadAll[entities.Entity](s.backing(kind), collectionEntities)
	if err != nil {
		return nil, err
	}
	out := make([]entities.Entity, 0)
	for _, entity := range all {
		if !keep(entity) {
			continue
		}
		out = append(out, entity)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func sortParticipations(items []entities.Participation) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].SubjectID < items[j].SubjectID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

var (
	_ ports.Repository = (*Store)(nil)
	_ ports.Reader     = (*Store)(nil)
)
