package postgresadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pollstack/contexts/credit-ledger/ledger-service/domain/entities"
	domainerrors "pollstack/contexts/credit-ledger/ledger-service/domain/errors"
	"pollstack/contexts/credit-ledger/ledger-service/ports"
	"pollstack/internal/platform/db"
	"pollstack/internal/platform/txcoord"

	"gorm.io/gorm"
)

var errVersionMoved = errors.New("subject version moved")

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) LoadSubject(ctx context.Context, sessions ports.Sessions, subjectID string) (entities.Subject, error) {
	tx, err := db.SessionTx(ctx, sessions, ports.StoreUsers)
	if err != nil {
		return entities.Subject{}, err
	}
	var row subjectModel
	err = tx.Where("subject_id = ?", strings.TrimSpace(subjectID)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Subject{}, domainerrors.ErrSubjectNotFound
		}
		return entities.Subject{}, r.storeError("ledger_repo_load_subject_failed", "load_subject", err, "subject_id", subjectID)
	}
	return row.toEntity(), nil
}

func (r *Repository) CreateSubject(ctx context.Context, sessions ports.Sessions, subject entities.Subject) error {
	tx, err := db.SessionTx(ctx, sessions, ports.StoreUsers)
	if err != nil {
		return err
	}
	row := subjectModelFromEntity(subject)
	if err := tx.Create(&row).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return domainerrors.ErrSubjectAlreadyExists
		}
		return r.storeError("ledger_repo_create_subject_failed", "create_subject", err, "subject_id", subject.SubjectID)
	}
	return nil
}

func (r *Repository) UpdateBalance(ctx context.Context, sessions ports.Sessions, subject entities.Subject, expectedVersion int64) error {
	tx, err := db.SessionTx(ctx, sessions, ports.StoreUsers)
	if err != nil {
		return err
	}
	result := tx.Model(&subjectModel{}).
		Where("subject_id = ? AND version = ?", subject.SubjectID, expectedVersion).
		Updates(map[string]any{
			"balance":    subject.Balance,
			"version":    subject.Version,
			"updated_at": subject.UpdatedAt,
		})
	if result.Error != nil {
		return r.storeError("ledger_repo_update_balance_failed", "update_balance", result.Error, "subject_id", subject.SubjectID)
	}
	if result.RowsAffected == 0 {
		return txcoord.NewStoreError(ports.StoreUsers, txcoord.KindConflict, "update_balance",
			fmt.Errorf("%w: expected version %d", errVersionMoved, expectedVersion))
	}
	return nil
}

func (r *Repository) InsertEntry(ctx context.Context, sessions ports.Sessions, entry entities.Entry) error {
	tx, err := db.SessionTx(ctx, sessions, ports.StoreUsers)
	if err != nil {
		return err
	}
	row := entryModelFromEntity(entry)
	if err := tx.Create(&row).Error; err != nil {
		return r.storeError("ledger_repo_insert_entry_failed", "insert_entry", err,
			"subject_id", entry.SubjectID,
			"entry_id", entry.EntryID,
			"sequence", entry.Sequence,
		)
	}
	return nil
}

func (r *Repository) FindEntryByRelation(
	ctx context.Context,
	sessions ports.Sessions,
	subjectID string,
	relatedEntityID string,
	kind entities.EntryKind,
) (entities.Entry, bool, error) {
	tx, err := db.SessionTx(ctx, sessions, ports.StoreUsers)
	if err != nil {
		return entities.Entry{}, false, err
	}
	var row entryModel
	err = tx.Where("subject_id = ? AND related_entity_id = ? AND kind = ?", subjectID, relatedEntityID, string(kind)).
		Order("sequence ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Entry{}, false, nil
		}
		return entities.Entry{}, false, r.storeError("ledger_repo_find_entry_failed", "find_entry", err,
			"subject_id", subjectID,
			"related_entity_id", relatedEntityID,
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) GetSubject(ctx context.Context, subjectID string) (entities.Subject, error) {
	var row subjectModel
	err := r.db.WithContext(ctx).Where("subject_id = ?", strings.TrimSpace(subjectID)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Subject{}, domainerrors.ErrSubjectNotFound
		}
		return entities.Subject{}, r.storeError("ledger_repo_get_subject_failed", "get_subject", err, "subject_id", subjectID)
	}
	return row.toEntity(), nil
}

func (r *Repository) GetEntry(ctx context.Context, entryID string) (entities.Entry, error) {
	var row entryModel
	err := r.db.WithContext(ctx).Where("entry_id = ?", strings.TrimSpace(entryID)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Entry{}, domainerrors.ErrEntryNotFound
		}
		return entities.Entry{}, r.storeError("ledger_repo_get_entry_failed", "get_entry", err, "entry_id", entryID)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListEntries(
	ctx context.Context,
	subjectID string,
	fromSequence int64,
	direction entities.Direction,
	limit int,
) ([]entities.Entry, error) {
	query := r.db.WithContext(ctx).Where("subject_id = ?", subjectID)
	if direction == entities.DirectionBackward {
		if fromSequence > 0 {
			query = query.Where("sequence < ?", fromSequence)
		}
		query = query.Order("sequence DESC")
	} else {
		query = query.Where("sequence > ?", fromSequence).Order("sequence ASC")
	}

	var rows []entryModel
	if err := query.Limit(limit).Find(&rows).Error; err != nil {
		return nil, r.storeError("ledger_repo_list_entries_failed", "list_entries", err, "subject_id", subjectID)
	}
	return entriesFromRows(rows), nil
}

func (r *Repository) ListAllEntries(ctx context.Context, subjectID string) ([]entities.Entry, error) {
	var rows []entryModel
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("sequence ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.storeError("ledger_repo_list_all_entries_failed", "list_all_entries", err, "subject_id", subjectID)
	}
	return entriesFromRows(rows), nil
}

func (r *Repository) ListSubjectIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&subjectModel{}).Order("subject_id ASC").Pluck("subject_id", &ids).Error
	if err != nil {
		return nil, r.storeError("ledger_repo_list_subjects_failed", "list_subjects", err)
	}
	return ids, nil
}

func (r *Repository) storeError(event string, op string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "credit-ledger/ledger-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ledger repository operation failed", fields...)
	return db.Classify(ports.StoreUsers, op, err)
}

type subjectModel struct {
	SubjectID string    `gorm:"column:subject_id;primaryKey"`
	Balance   int64     `gorm:"column:balance"`
	Version   int64     `gorm:"column:version"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (subjectModel) TableName() string {
	return "subjects"
}

func (m subjectModel) toEntity() entities.Subject {
	return entities.Subject{
		SubjectID: m.SubjectID,
		Balance:   m.Balance,
		Version:   m.Version,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func subjectModelFromEntity(subject entities.Subject) subjectModel {
	return subjectModel{
		SubjectID: subject.SubjectID,
		Balance:   subject.Balance,
		Version:   subject.Version,
		CreatedAt: subject.CreatedAt,
		UpdatedAt: subject.UpdatedAt,
	}
}

type entryModel struct {
	EntryID          string    `gorm:"column:entry_id;primaryKey"`
	SubjectID        string    `gorm:"column:subject_id"`
	Sequence         int64     `gorm:"column:sequence"`
	Delta            int64     `gorm:"column:delta"`
	ResultingBalance int64     `gorm:"column:resulting_balance"`
	Kind             string    `gorm:"column:kind"`
	Reason           string    `gorm:"column:reason"`
	RelatedEntityID  string    `gorm:"column:related_entity_id"`
	Administrative   bool      `gorm:"column:administrative"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

func (entryModel) TableName() string {
	return "ledger_entries"
}

func (m entryModel) toEntity() entities.Entry {
	return entities.Entry{
		EntryID:          m.EntryID,
		SubjectID:        m.SubjectID,
		Sequence:         m.Sequence,
		Delta:            m.Delta,
		ResultingBalance: m.ResultingBalance,
		Kind:             entities.EntryKind(m.Kind),
		Reason:           m.Reason,
		RelatedEntityID:  m.RelatedEntityID,
		Administrative:   m.Administrative,
		CreatedAt:        m.CreatedAt.UTC(),
	}
}

func entryModelFromEntity(entry entities.Entry) entryModel {
	return entryModel{
		EntryID:          entry.EntryID,
		SubjectID:        entry.SubjectID,
		Sequence:         entry.Sequence,
		Delta:            entry.Delta,
		ResultingBalance: entry.ResultingBalance,
		Kind:             string(entry.Kind),
		Reason:           entry.Reason,
		RelatedEntityID:  entry.RelatedEntityID,
		Administrative:   entry.Administrative,
		CreatedAt:        entry.CreatedAt,
	}
}

func entriesFromRows(rows []entryModel) []entities.Entry {
	out := make([]entities.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out
}

var (
	_ ports.Repository = (*Repository)(nil)
	_ ports.Reader     = (*Repository)(nil)
)
