package queries

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pollstack/contexts/credit-ledger/ledger-service/domain/entities"
	domainerrors "pollstack/contexts/credit-ledger/ledger-service/domain/errors"
	"pollstack/contexts/credit-ledger/ledger-service/ports"
)

const (
	defaultHistoryPageSize = 20
	maxHistoryPageSize     = 100
)

type HistoryUseCase struct {
	Reader ports.Reader
}

// GetHistoryPage pages through a subject's entries in sequence order. The
// cursor is the id of the last entry the caller has already seen.
func (uc HistoryUseCase) GetHistoryPage(ctx context.Context, query entities.HistoryQuery) (entities.HistoryPage, error) {
	query.SubjectID = strings.TrimSpace(query.SubjectID)
	query.CursorEntryID = strings.TrimSpace(query.CursorEntryID)
	if query.SubjectID == "" {
		return entities.HistoryPage{}, domainerrors.ErrInvalidSubjectID
	}
	if query.Direction == "" {
		query.Direction = entities.DirectionForward
	}
	if query.Direction != entities.DirectionForward && query.Direction != entities.DirectionBackward {
		return entities.HistoryPage{}, fmt.Errorf("%w: direction %q", domainerrors.ErrInvalidHistoryQuery, query.Direction)
	}
	switch {
	case query.PageSize < 0:
		return entities.HistoryPage{}, fmt.Errorf("%w: page size %d", domainerrors.ErrInvalidHistoryQuery, query.PageSize)
	case query.PageSize == 0:
		query.PageSize = defaultHistoryPageSize
	case query.PageSize > maxHistoryPageSize:
		query.PageSize = maxHistoryPageSize
	}

	if _, err := uc.Reader.GetSubject(ctx, query.SubjectID); err != nil {
		return entities.HistoryPage{}, err
	}

	var fromSequence int64
	if query.CursorEntryID != "" {
		cursor, err := uc.Reader.GetEntry(ctx, query.CursorEntryID)
		if err != nil {
			if errors.Is(err, domainerrors.ErrEntryNotFound) {
				return entities.HistoryPage{}, fmt.Errorf("%w: unknown cursor", domainerrors.ErrInvalidHistoryQuery)
			}
			return entities.HistoryPage{}, err
		}
		if cursor.SubjectID != query.SubjectID {
			return entities.HistoryPage{}, fmt.Errorf("%w: cursor belongs to another subject", domainerrors.ErrInvalidHistoryQuery)
		}
		fromSequence = cursor.Sequence
	}

	entries, err := uc.Reader.ListEntries(ctx, query.SubjectID, fromSequence, query.Direction, query.PageSize+1)
	if err != nil {
		return entities.HistoryPage{}, err
	}

	page := entities.HistoryPage{Entries: entries}
	if len(entries) > query.PageSize {
		page.Entries = entries[:query.PageSize]
		page.HasMore = true
		page.NextCursor = page.Entries[len(page.Entries)-1].EntryID
	}
	return page, nil
}
