package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pollstack/contexts/commerce/exchange-service/domain/entities"
	domainerrors "pollstack/contexts/commerce/exchange-service/domain/errors"
	"pollstack/contexts/commerce/exchange-service/ports"
)

type ExchangeInput struct {
	SubjectID   string
	ProductID   string
	ProductName string
	Amount      int64
}

type ExchangeResult struct {
	Order    entities.Order
	Balance  int64
	Replayed bool
	// Repaired is set when the debit had committed without its order and
	// the order was rebuilt from it.
	Repaired bool
}

// Service exchanges credit for products. The debit and the order commit in
// one unit over the users and payments stores.
type Service struct {
	UnitOfWork ports.UnitOfWork
	Repo       ports.Repository
	Reader     ports.Reader
	Ledger     ports.Ledger
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (s Service) ExchangeProduct(ctx context.Context, idempotencyKey string, input ExchangeInput) (ExchangeResult, error) {
	logger := ResolveLogger(s.Logger)
	input.SubjectID = strings.TrimSpace(input.SubjectID)
	input.ProductID = strings.TrimSpace(input.ProductID)
	input.ProductName = strings.TrimSpace(input.ProductName)
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if input.SubjectID == "" || input.ProductID == "" || input.Amount <= 0 {
		return ExchangeResult{}, domainerrors.ErrInvalidRequest
	}
	if idempotencyKey == "" {
		return ExchangeResult{}, domainerrors.ErrIdempotencyKeyRequired
	}
	requestHash := entities.RequestHash(input.SubjectID, input.ProductID, input.Amount)

	var result ExchangeResult
	stores := []ports.StoreID{ports.StoreUsers, ports.StorePayments}
	err := s.UnitOfWork.Run(ctx, stores, func(ctx context.Context, sessions ports.Sessions) error {
		existing, found, err := s.Repo.FindOrderByKey(ctx, sessions, input.SubjectID, idempotencyKey)
		if err != nil {
			return err
		}
		if found {
			if existing.RequestHash != requestHash {
				return domainerrors.ErrIdempotencyConflict
			}
			result = ExchangeResult{Order: existing, Replayed: true}
			return nil
		}

		orderID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return fmt.Errorf("generate order id: %w", err)
		}
		reference := entities.ChargeReference(idempotencyKey)
		receipt, charged, err := s.Ledger.FindCharge(ctx, sessions, input.SubjectID, reference)
		if err != nil {
			return err
		}
		if !charged {
			reason := input.ProductName
			if reason == "" {
				reason = input.ProductID
			}
			receipt, err = s.Ledger.Charge(ctx, sessions, ports.Charge{
				SubjectID: input.SubjectID,
				Amount:    input.Amount,
				Reason:    reason,
				Reference: reference,
			})
			if err != nil {
				return err
			}
		}
		order := entities.Order{
			OrderID:        orderID,
			SubjectID:      input.SubjectID,
			ProductID:      input.ProductID,
			ProductName:    input.ProductName,
			Amount:         input.Amount,
			IdempotencyKey: idempotencyKey,
			RequestHash:    requestHash,
			LedgerEntryID:  receipt.EntryID,
			CreatedAt:      s.now(),
		}
		if err := s.Repo.InsertOrder(ctx, sessions, order); err != nil {
			return err
		}
		result = ExchangeResult{Order: order, Balance: receipt.ResultingBalance, Repaired: charged}
		return nil
	})
	if err != nil {
		logger.Warn("product exchange failed",
			"event", "exchange_product_failed",
			"module", "commerce/exchange-service",
			"layer", "application",
			"subject_id", input.SubjectID,
			"product_id", input.ProductID,
			"amount", input.Amount,
			"error", err.Error(),
		)
		return ExchangeResult{}, err
	}

	logger.Info("product exchanged",
		"event", "exchange_product_committed",
		"module", "commerce/exchange-service",
		"layer", "application",
		"subject_id", input.SubjectID,
		"order_id", result.Order.OrderID,
		"replayed", result.Replayed,
		"repaired", result.Repaired,
	)
	return result, nil
}

func (s Service) ListOrders(ctx context.Context, subjectID string, limit int) ([]entities.Order, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, domainerrors.ErrInvalidRequest
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.Reader.ListOrders(ctx, subjectID, limit)
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
