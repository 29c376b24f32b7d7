package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pollstack/contexts/credit-ledger/lottery-service/domain/entities"
	domainerrors "pollstack/contexts/credit-ledger/lottery-service/domain/errors"
	"pollstack/contexts/credit-ledger/lottery-service/ports"
	"pollstack/internal/platform/db"

	"gorm.io/gorm"
)

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

func (r *Repository) FindDraw(ctx context.Context, sessions ports.Sessions, kind entities.EntityKind, entityID string) (entities.Draw, bool, error) {
	tx, err := db.SessionTx(ctx, sessions, ports.StoreUsers)
	if err != nil {
		return entities.Draw{}, false, err
	}
	var row drawModel
	err = tx.Where("entity_kind = ? AND entity_id = ?", string(kind), entityID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Draw{}, false, nil
		}
		return entities.Draw{}, false, r.storeError("lottery_repo_find_draw_failed", "find_draw", err, "entity_id", entityID)
	}
	return row.toEntity(), true, nil
}

// InsertDraw relies on the (entity_kind, entity_id) unique key: a concurrent
// draw surfaces as a conflict and the unit reruns into the existing draw.
func (r *Repository) InsertDraw(ctx context.Context, sessions ports.Sessions, draw entities.Draw) error {
	tx, err := db.SessionTx(ctx, sessions, ports.StoreUsers)
	if err != nil {
		return err
	}
	row := drawModelFromEntity(draw)
	if err := tx.Create(&row).Error; err != nil {
		return r.storeError("lottery_repo_insert_draw_failed", "insert_draw", err,
			"entity_id", draw.EntityID,
			"draw_id", draw.DrawID,
		)
	}
	return nil
}

func (r *Repository) GetDraw(ctx context.Context, kind entities.EntityKind, entityID string) (entities.Draw, error) {
	var row drawModel
	err := r.db.WithContext(ctx).Where("entity_kind = ? AND entity_id = ?", string(kind), entityID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Draw{}, domainerrors.ErrDrawNotFound
		}
		return entities.Draw{}, r.storeError("lottery_repo_get_draw_failed", "get_draw", err, "entity_id", entityID)
	}
	return row.toEntity(), nil
}

func (r *Repository) storeError(event string, op string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "credit-ledger/lottery-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("lottery repository operation failed", fields...)
	return db.Classify(ports.StoreUsers, op, err)
}

type drawModel struct {
	DrawID       string    `gorm:"column:draw_id;primaryKey"`
	EntityKind   string    `gorm:"column:entity_kind"`
	EntityID     string    `gorm:"column:entity_id"`
	RewardAmount int64     `gorm:"column:reward_amount"`
	Winners      []string  `gorm:"column:winners;serializer:json"`
	DrawnAt      time.Time `gorm:"column:drawn_at"`
}

func (drawModel) TableName() string {
	return "lottery_draws"
}

func (m drawModel) toEntity() entities.Draw {
	return entities.Draw{
		DrawID:       m.DrawID,
		EntityID:     m.EntityID,
		EntityKind:   entities.EntityKind(m.EntityKind),
		RewardAmount: m.RewardAmount,
		Winners:      append([]string(nil), m.Winners...),
		DrawnAt:      m.DrawnAt.UTC(),
	}
}

func drawModelFromEntity(draw entities.Draw) drawModel {
	winners := draw.Winners
	if winners == nil {
		winners = []string{}
	}
	return drawModel{
		DrawID:       draw.DrawID,
		EntityKind:   string(draw.EntityKind),
		EntityID:     draw.EntityID,
		RewardAmount: draw.RewardAmount,
		Winners:      winners,
		DrawnAt:      draw.DrawnAt,
	}
}

var (
	_ ports.Draws      = (*Repository)(nil)
	_ ports.DrawReader = (*Repository)(nil)
)
