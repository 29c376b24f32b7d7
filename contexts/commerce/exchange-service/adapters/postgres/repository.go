package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"pollstack/contexts/commerce/exchange-service/domain/entities"
	"pollstack/contexts/commerce/exchange-service/ports"
	"pollstack/internal/platform/db"
	"pollstack/internal/platform/txcoord"

	"gorm.io/gorm"
)

var errDuplicateOrder = errors.New("exchange order already exists")

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func (r *Repository) FindOrderByKey(ctx context.Context, sessions ports.Sessions, subjectID string, idempotencyKey string) (entities.Order, bool, error) {
	tx, err := db.SessionTx(ctx, sessions, ports.StorePayments)
	if err != nil {
		return entities.Order{}, false, err
	}
	var row orderModel
	err = tx.Where("subject_id = ? AND idempotency_key = ?", strings.TrimSpace(subjectID), strings.TrimSpace(idempotencyKey)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Order{}, false, nil
		}
		return entities.Order{}, false, r.storeError("exchange_repo_find_order_failed", "find_order", err, "subject_id", subjectID)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) InsertOrder(ctx context.Context, sessions ports.Sessions, order entities.Order) error {
	tx, err := db.SessionTx(ctx, sessions, ports.StorePayments)
	if err != nil {
		return err
	}
	row := orderModelFromEntity(order)
	if err := tx.Create(&row).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return txcoord.NewStoreError(ports.StorePayments, txcoord.KindConflict, "insert_order", errDuplicateOrder)
		}
		return r.storeError("exchange_repo_insert_order_failed", "insert_order", err, "order_id", order.OrderID)
	}
	return nil
}

func (r *Repository) ListOrders(ctx context.Context, subjectID string, limit int) ([]entities.Order, error) {
	var rows []orderModel
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", strings.TrimSpace(subjectID)).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, r.storeError("exchange_repo_list_orders_failed", "list_orders", err, "subject_id", subjectID)
	}
	out := make([]entities.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *Repository) storeError(event string, op string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "commerce/exchange-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("exchange repository operation failed", fields...)
	return db.Classify(ports.StorePayments, op, err)
}

type orderModel struct {
	OrderID        string    `gorm:"column:order_id;primaryKey"`
	SubjectID      string    `gorm:"column:subject_id"`
	ProductID      string    `gorm:"column:product_id"`
	ProductName    string    `gorm:"column:product_name"`
	Amount         int64     `gorm:"column:amount"`
	IdempotencyKey string    `gorm:"column:idempotency_key"`
	RequestHash    string    `gorm:"column:request_hash"`
	LedgerEntryID  string    `gorm:"column:ledger_entry_id"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (orderModel) TableName() string {
	return "exchange_orders"
}

func (m orderModel) toEntity() entities.Order {
	return entities.Order{
		OrderID:        m.OrderID,
		SubjectID:      m.SubjectID,
		ProductID:      m.ProductID,
		ProductName:    m.ProductName,
		Amount:         m.Amount,
		IdempotencyKey: m.IdempotencyKey,
		RequestHash:    m.RequestHash,
		LedgerEntryID:  m.LedgerEntryID,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

func orderModelFromEntity(order entities.Order) orderModel {
	return orderModel{
		OrderID:        order.OrderID,
		SubjectID:      order.SubjectID,
		ProductID:      order.ProductID,
		ProductName:    order.ProductName,
		Amount:         order.Amount,
		IdempotencyKey: order.IdempotencyKey,
		RequestHash:    order.RequestHash,
		LedgerEntryID:  order.LedgerEntryID,
		CreatedAt:      order.CreatedAt.UTC(),
	}
}

var (
	_ ports.Repository = (*Repository)(nil)
	_ ports.Reader     = (*Repository)(nil)
)
