package postgresadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pollstack/contexts/survey-content/survey-service/domain/entities"
	domainerrors "pollstack/contexts/survey-content/survey-service/domain/errors"
	"pollstack/contexts/survey-content/survey-service/ports"
	"pollstack/internal/platform/db"
	"pollstack/internal/platform/txcoord"

	"gorm.io/gorm"
)

var errVersionMoved = errors.New("entity version moved")

// Repository serves both content stores. Researches and votes share one
// row shape and live in same-named tables of their own databases.
type Repository struct {
	research *gorm.DB
	vote     *gorm.DB
	logger   *slog.Logger
}

func NewRepository(research *gorm.DB, vote *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		research: research,
		vote:     vote,
		logger:   logger,
	}
}

func entityTable(kind entities.Kind) string {
	if kind == entities.KindVote {
		return "votes"
	}
	return "researches"
}

func participationTable(kind entities.Kind) string {
	if kind == entities.KindVote {
		return "vote_participations"
	}
	return "research_participations"
}

func (r *Repository) pool(kind entities.Kind) *gorm.DB {
	if kind == entities.KindVote {
		return r.vote
	}
	return r.research
}

func (r *Repository) LoadEntity(ctx context.Context, sessions ports.Sessions, kind entities.Kind, entityID string) (entities.Entity, error) {
	tx, err := db.SessionTx(ctx, sessions, ports.StoreFor(kind))
	if err != nil {
		return entities.Entity{}, err
	}
	var row entityModel
	err = tx.Table(entityTable(kind)).Where("entity_id = ?", strings.TrimSpace(entityID)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Entity{}, domainerrors.ErrEntityNotFound
		}
		return entities.Entity{}, r.storeError(kind, "survey_repo_load_entity_failed", "load_entity", err, "entity_id", entityID)
	}
	return row.toEntity(kind), nil
}

func (r *Repository) CreateEntity(ctx context.Context, sessions ports.Sessions, entity entities.Entity) error {
	tx, err := db.SessionTx(ctx, sessions, ports.StoreFor(entity.Kind))
	if err != nil {
		return err
	}
	row := entityModelFromEntity(entity)
	if err := tx.Table(entityTable(entity.Kind)).Create(&row).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return domainerrors.ErrEntityAlreadyExists
		}
		return r.storeError(entity.Kind, "survey_repo_create_entity_failed", "create_entity", err, "entity_id", entity.EntityID)
	}
	return nil
}

func (r *Repository) UpdateEntity(ctx context.Context, sessions ports.Sessions, entity entities.Entity, expectedVersion int64) error {
	store := ports.StoreFor(entity.Kind)
	tx, err := db.SessionTx(ctx, sessions, store)
	if err != nil {
		return err
	}
	row := entityModelFromEntity(entity)
	result := tx.Table(entityTable(entity.Kind)).
		Where("entity_id = ? AND version = ?", entity.EntityID, expectedVersion).
		Updates(map[string]any{
			"title":              row.Title,
			"deadline":           row.Deadline,
			"extra_credit":       row.ExtraCredit,
			"winner_count":       row.WinnerCount,
			"distribution_state": row.DistributionState,
			"closed":             row.Closed,
			"closed_at":          row.ClosedAt,
			"distributed_at":     row.DistributedAt,
			"pulled_up_at":       row.PulledUpAt,
			"participant_count":  row.ParticipantCount,
			"revision":           row.Revision,
			"deleted_at":         row.DeletedAt,
			"version":            row.Version,
			"updated_at":         row.UpdatedAt,
		})
	if result.Error != nil {
		return r.storeError(entity.Kind, "survey_repo_update_entity_failed", "update_entity", result.Error, "entity_id", entity.EntityID)
	}
	if result.RowsAffected == 0 {
		return txcoord.NewStoreError(store, txcoord.KindConflict, "update_entity",
			fmt.Errorf("%w: expected version %d", errVersionMoved, expectedVersion))
	}
	return nil
}

func (r *Repository) FindParticipation(
	ctx context.Context,
	sessions ports.Sessions,
	kind entities.Kind,
	entityID string,
	subjectID string,
) (entities.Participation, bool, error) {
	tx, err := db.SessionTx(ctx, sessions, ports.StoreFor(kind))
	if err != nil {
		return entities.Participation{}, false, err
	}
	var row participationModel
	err = tx.Table(participationTable(kind)).
		Where("entity_id = ? AND subject_id = ?", entityID, subjectID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Participation{}, false, nil
		}
		return entities.Participation{}, false, r.storeError(kind, "survey_repo_find_participation_failed", "find_participation", err,
			"entity_id", entityID,
			"subject_id", subjectID,
		)
	}
	return row.toEntity(kind), true, nil
}

func (r *Repository) InsertParticipation(ctx context.Context, sessions ports.Sessions, participation entities.Participation) error {
	tx, err := db.SessionTx(ctx, sessions, ports.StoreFor(participation.Kind))
	if err != nil {
		return err
	}
	row := participationModelFromEntity(participation)
	if err := tx.Table(participationTable(participation.Kind)).Create(&row).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return domainerrors.ErrAlreadyParticipated
		}
		return r.storeError(participation.Kind, "survey_repo_insert_participation_failed", "insert_participation", err,
			"entity_id", participation.EntityID,
			"subject_id", participation.SubjectID,
		)
	}
	return nil
}

func (r *Repository) UpdateParticipation(ctx context.Context, sessions ports.Sessions, participation entities.Participation) error {
	tx, err := db.SessionTx(ctx, sessions, ports.StoreFor(participation.Kind))
	if err != nil {
		return err
	}
	err = tx.Table(participationTable(participation.Kind)).
		Where("entity_id = ? AND subject_id = ?", participation.EntityID, participation.SubjectID).
		Update("valid", participation.Valid).Error
	if err != nil {
		return r.storeError(participation.Kind, "survey_repo_update_participation_failed", "update_participation", err,
			"entity_id", participation.EntityID,
			"subject_id", participation.SubjectID,
		)
	}
	return nil
}

func (r *Repository) ListParticipations(ctx context.Context, sessions ports.Sessions, kind entities.Kind, entityID string) ([]entities.Participation, error) {
	tx, err := db.SessionTx(ctx, sessions, ports.StoreFor(kind))
	if err != nil {
		return nil, err
	}
	return r.listParticipations(tx, kind, entityID)
}

func (r *Repository) HasStatTicket(ctx context.Context, sessions ports.Sessions, entityID string, subjectID string) (bool, error) {
	tx, err := db.SessionTx(ctx, sessions, ports.StoreVote)
	if err != nil {
		return false, err
	}
	var count int64
	err = tx.Model(&statTicketModel{}).
		Where("entity_id = ? AND subject_id = ?", entityID, subjectID).
		Count(&count).Error
	if err != nil {
		return false, r.storeError(entities.KindVote, "survey_repo_find_stat_ticket_failed", "find_stat_ticket", err, "entity_id", entityID)
	}
	return count > 0, nil
}

func (r *Repository) InsertStatTicket(ctx context.Context, sessions ports.Sessions, ticket entities.StatTicket) error {
	tx, err := db.SessionTx(ctx, sessions, ports.StoreVote)
	if err != nil {
		return err
	}
	row := statTicketModel{EntityID: ticket.EntityID, SubjectID: ticket.SubjectID, CreatedAt: ticket.CreatedAt}
	if err := tx.Create(&row).Error; err != nil {
		return r.storeError(entities.KindVote, "survey_repo_insert_stat_ticket_failed", "insert_stat_ticket", err,
			"entity_id", ticket.EntityID,
			"subject_id", ticket.SubjectID,
		)
	}
	return nil
}

func (r *Repository) GetEntity(ctx context.Context, kind entities.Kind, entityID string) (entities.Entity, error) {
	var row entityModel
	err := r.pool(kind).WithContext(ctx).Table(entityTable(kind)).Where("entity_id = ?", strings.TrimSpace(entityID)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Entity{}, domainerrors.ErrEntityNotFound
		}
		return entities.Entity{}, r.storeError(kind, "survey_repo_get_entity_failed", "get_entity", err, "entity_id", entityID)
	}
	return row.toEntity(kind), nil
}

func (r *Repository) ListDueForClosure(ctx context.Context, kind entities.Kind, now time.Time, limit int) ([]entities.Entity, error) {
	query := r.pool(kind).WithContext(ctx).Table(entityTable(kind)).
		Where("closed = ? AND deadline IS NOT NULL AND deadline <= ?", false, now)
	return r.listEntities(kind, query, limit, "list_due")
}

func (r *Repository) ListAwaitingDistribution(ctx context.Context, kind entities.Kind, now time.Time, limit int) ([]entities.Entity, error) {
	query := r.pool(kind).WithContext(ctx).Table(entityTable(kind)).
		Where("distribution_state = ?", string(entities.DistributionPending)).
		Where("closed = ? OR (deadline IS NOT NULL AND deadline <= ?)", true, now)
	return r.listEntities(kind, query, limit, "list_awaiting_distribution")
}

func (r *Repository) ListEntityParticipations(ctx context.Context, kind entities.Kind, entityID string) ([]entities.Participation, error) {
	return r.listParticipations(r.pool(kind).WithContext(ctx), kind, entityID)
}

func (r *Repository) listEntities(kind entities.Kind, query *gorm.DB, limit int, op string) ([]entities.Entity, error) {
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []entityModel
	if err := query.Order("deadline ASC, entity_id ASC").Find(&rows).Error; err != nil {
		return nil, r.storeError(kind, "survey_repo_"+op+"_failed", op, err)
	}
	out := make([]entities.Entity, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity(kind))
	}
	return out, nil
}

func (r *Repository) listParticipations(tx *gorm.DB, kind entities.Kind, entityID string) ([]entities.Participation, error) {
	var rows []participationModel
	err := tx.Table(participationTable(kind)).
		Where("entity_id = ?", entityID).
		Order("created_at ASC, subject_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.storeError(kind, "survey_repo_list_participations_failed", "list_participations", err, "entity_id", entityID)
	}
	out := make([]entities.Participation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity(kind))
	}
	return out, nil
}

func (r *Repository) storeError(kind entities.Kind, event string, op string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+10)
	fields = append(fields,
		"event", event,
		"module", "survey-content/survey-service",
		"layer", "adapter",
		"kind", string(kind),
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("survey repository operation failed", fields...)
	return db.Classify(ports.StoreFor(kind), op, err)
}

type entityModel struct {
	EntityID          string     `gorm:"column:entity_id;primaryKey"`
	Title             string     `gorm:"column:title"`
	AuthorID          string     `gorm:"column:author_id"`
	Deadline          *time.Time `gorm:"column:deadline"`
	ExtraCredit       int64      `gorm:"column:extra_credit"`
	WinnerCount       int        `gorm:"column:winner_count"`
	DistributionState string     `gorm:"column:distribution_state"`
	Closed            bool       `gorm:"column:closed"`
	ClosedAt          *time.Time `gorm:"column:closed_at"`
	DistributedAt     *time.Time `gorm:"column:distributed_at"`
	PulledUpAt        *time.Time `gorm:"column:pulled_up_at"`
	EstimatedMinutes  int        `gorm:"column:estimated_minutes"`
	AgeScreening      bool       `gorm:"column:age_screening"`
	ParticipantCount  int        `gorm:"column:participant_count"`
	Revision          int64      `gorm:"column:revision"`
	DeletedAt         *time.Time `gorm:"column:deleted_at"`
	Version           int64      `gorm:"column:version"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
}

func (m entityModel) toEntity(kind entities.Kind) entities.Entity {
	return entities.Entity{
		EntityID:          m.EntityID,
		Kind:              kind,
		Title:             m.Title,
		AuthorID:          m.AuthorID,
		Deadline:          utcPtr(m.Deadline),
		ExtraCredit:       m.ExtraCredit,
		WinnerCount:       m.WinnerCount,
		DistributionState: entities.DistributionState(m.DistributionState),
		Closed:            m.Closed,
		ClosedAt:          utcPtr(m.ClosedAt),
		DistributedAt:     utcPtr(m.DistributedAt),
		PulledUpAt:        utcPtr(m.PulledUpAt),
		EstimatedMinutes:  m.EstimatedMinutes,
		AgeScreening:      m.AgeScreening,
		ParticipantCount:  m.ParticipantCount,
		Revision:          m.Revision,
		DeletedAt:         utcPtr(m.DeletedAt),
		Version:           m.Version,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
}

func entityModelFromEntity(entity entities.Entity) entityModel {
	return entityModel{
		EntityID:          entity.EntityID,
		Title:             entity.Title,
		AuthorID:          entity.AuthorID,
		Deadline:          entity.Deadline,
		ExtraCredit:       entity.ExtraCredit,
		WinnerCount:       entity.WinnerCount,
		DistributionState: string(entity.DistributionState),
		Closed:            entity.Closed,
		ClosedAt:          entity.ClosedAt,
		DistributedAt:     entity.DistributedAt,
		PulledUpAt:        entity.PulledUpAt,
		EstimatedMinutes:  entity.EstimatedMinutes,
		AgeScreening:      entity.AgeScreening,
		ParticipantCount:  entity.ParticipantCount,
		Revision:          entity.Revision,
		DeletedAt:         entity.DeletedAt,
		Version:           entity.Version,
		CreatedAt:         entity.CreatedAt,
		UpdatedAt:         entity.UpdatedAt,
	}
}

type participationModel struct {
	EntityID  string    `gorm:"column:entity_id;primaryKey"`
	SubjectID string    `gorm:"column:subject_id;primaryKey"`
	Valid     bool      `gorm:"column:valid"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (m participationModel) toEntity(kind entities.Kind) entities.Participation {
	return entities.Participation{
		EntityID:  m.EntityID,
		Kind:      kind,
		SubjectID: m.SubjectID,
		Valid:     m.Valid,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func participationModelFromEntity(participation entities.Participation) participationModel {
	return participationModel{
		EntityID:  participation.EntityID,
		SubjectID: participation.SubjectID,
		Valid:     participation.Valid,
		CreatedAt: participation.CreatedAt,
	}
}

type statTicketModel struct {
	EntityID  string    `gorm:"column:entity_id;primaryKey"`
	SubjectID string    `gorm:"column:subject_id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (statTicketModel) TableName() string {
	return "vote_stat_tickets"
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}

var (
	_ ports.Repository = (*Repository)(nil)
	_ ports.Reader     = (*Repository)(nil)
)
