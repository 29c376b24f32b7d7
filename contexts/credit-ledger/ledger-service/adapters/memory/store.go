package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"pollstack/contexts/credit-ledger/ledger-service/domain/entities"
	domainerrors "pollstack/contexts/credit-ledger/ledger-service/domain/errors"
	"pollstack/contexts/credit-ledger/ledger-service/ports"
	"pollstack/internal/platform/memstore"
	"pollstack/internal/platform/txcoord"
)

const (
	collectionSubjects = "subjects"
	collectionEntries  = "ledger_entries"
)

var errVersionMoved = errors.New("subject version moved")

// Store keeps subjects and ledger entries in the shared users memstore.
type Store struct {
	users *memstore.Store
}

func NewStore(users *memstore.Store) *Store {
	return &Store{users: users}
}

func (s *Store) session(sessions ports.Sessions) (*memstore.Session, error) {
	sess, err := sessions.Get(ports.StoreUsers)
	if err != nil {
		return nil, err
	}
	return memstore.AsSession(sess)
}

func (s *Store) LoadSubject(_ context.Context, sessions ports.Sessions, subjectID string) (entities.Subject, error) {
	sess, err := s.session(sessions)
	if err != nil {
		return entities.Subject{}, err
	}
	subject, err := memstore.Get[entities.Subject](sess, collectionSubjects, subjectID)
	if err != nil {
		if txcoord.IsNotFound(err) {
			return entities.Subject{}, domainerrors.ErrSubjectNotFound
		}
		return entities.Subject{}, err
	}
	return subject, nil
}

func (s *Store) CreateSubject(_ context.Context, sessions ports.Sessions, subject entities.Subject) error {
	sess, err := s.session(sessions)
	if err != nil {
		return err
	}
	if err := sess.Insert(collectionSubjects, subject.SubjectID, subject); err != nil {
		if txcoord.KindOf(err) == txcoord.KindConflict {
			return domainerrors.ErrSubjectAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) UpdateBalance(_ context.Context, sessions ports.Sessions, subject entities.Subject, expectedVersion int64) error {
	sess, err := s.session(sessions)
	if err != nil {
		return err
	}
	current, err := memstore.Get[entities.Subject](sess, collectionSubjects, subject.SubjectID)
	if err != nil {
		if txcoord.IsNotFound(err) {
			return domainerrors.ErrSubjectNotFound
		}
		return err
	}
	if current.Version != expectedVersion {
		return txcoord.NewStoreError(ports.StoreUsers, txcoord.KindConflict, "update_balance",
			fmt.Errorf("%w: have %d, expected %d", errVersionMoved, current.Version, expectedVersion))
	}
	return sess.Put(collectionSubjects, subject.SubjectID, subject)
}

func (s *Store) InsertEntry(_ context.Context, sessions ports.Sessions, entry entities.Entry) error {
	sess, err := s.session(sessions)
	if err != nil {
		return err
	}
	return sess.Insert(collectionEntries, entry.EntryID, entry)
}

func (s *Store) FindEntryByRelation(
	_ context.Context,
	sessions ports.Sessions,
	subjectID string,
	relatedEntityID string,
	kind entities.EntryKind,
) (entities.Entry, bool, error) {
	sess, err := s.session(sessions)
	if err != nil {
		return entities.Entry{}, false, err
	}
	matches, err := memstore.List(sess, collectionEntries, func(entry entities.Entry) bool {
		return entry.SubjectID == subjectID && entry.RelatedEntityID == relatedEntityID && entry.Kind == kind
	})
	if err != nil {
		return entities.Entry{}, false, err
	}
	if len(matches) == 0 {
		return entities.Entry{}, false, nil
	}
	sortBySequence(matches)
	return matches[0], true, nil
}

func (s *Store) GetSubject(_ context.Context, subjectID string) (entities.Subject, error) {
	subject, err := memstore.Read[entities.Subject](s.users, collectionSubjects, subjectID)
	if err != nil {
		if txcoord.IsNotFound(err) {
			return entities.Subject{}, domainerrors.ErrSubjectNotFound
		}
		return entities.Subject{}, err
	}
	return subject, nil
}

func (s *Store) GetEntry(_ context.Context, entryID string) (entities.Entry, error) {
	entry, err := memstore.Read[entities.Entry](s.users, collectionEntries, entryID)
	if err != nil {
		if txcoord.IsNotFound(err) {
			return entities.Entry{}, domainerrors.ErrEntryNotFound
		}
		return entities.Entry{}, err
	}
	return entry, nil
}

func (s *Store) ListEntries(
	ctx context.Context,
	subjectID string,
	fromSequence int64,
	direction entities.Direction,
	limit int,
) ([]entities.Entry, error) {
	all, err := s.ListAllEntries(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	out := make([]entities.Entry, 0, limit)
	if direction == entities.DirectionBackward {
		for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
			if fromSequence == 0 || all[i].Sequence < fromSequence {
				out = append(out, all[i])
			}
		}
		return out, nil
	}
	for _, entry := range all {
		if len(out) == limit {
			break
		}
		if entry.Sequence > fromSequence {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *Store) ListAllEntries(_ context.Context, subjectID string) ([]entities.Entry, error) {
	all, err := memstore.ReadAll[entities.Entry](s.users, collectionEntries)
	if err != nil {
		return nil, err
	}
	out := make([]entities.Entry, 0)
	for _, entry := range all {
		if entry.SubjectID == subjectID {
			out = append(out, entry)
		}
	}
	sortBySequence(out)
	return out, nil
}

func (s *Store) ListSubjectIDs(context.Context) ([]string, error) {
	subjects, err := memstore.ReadAll[entities.Subject](s.users, collectionSubjects)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		out = append(out, subject.SubjectID)
	}
	return out, nil
}

func sortBySequence(entries []entities.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Sequence < entries[j].Sequence
	})
}

var (
	_ ports.Repository = (*Store)(nil)
	_ ports.Reader     = (*Store)(nil)
)
