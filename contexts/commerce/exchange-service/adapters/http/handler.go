package httpadapter

import (
	"context"
	"log/slog"

	"pollstack/contexts/commerce/exchange-service/application"
	"pollstack/contexts/commerce/exchange-service/domain/entities"
	httptransport "pollstack/contexts/commerce/exchange-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) ExchangeHandler(
	ctx context.Context,
	actorID string,
	idempotencyKey string,
	req httptransport.ExchangeRequest,
) (httptransport.ExchangeResponse, error) {
	result, err := h.Service.ExchangeProduct(ctx, idempotencyKey, application.ExchangeInput{
		SubjectID:   actorID,
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Amount:      req.Amount,
	})
	if err != nil {
		return httptransport.ExchangeResponse{}, err
	}
	return httptransport.ExchangeResponse{
		Order:    toOrderResponse(result.Order),
		Balance:  result.Balance,
		Replayed: result.Replayed,
	}, nil
}

func (h Handler) ListOrdersHandler(ctx context.Context, actorID string, limit int) (httptransport.ListOrdersResponse, error) {
	orders, err := h.Service.ListOrders(ctx, actorID, limit)
	if err != nil {
		return httptransport.ListOrdersResponse{}, err
	}
	out := make([]httptransport.OrderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, toOrderResponse(order))
	}
	return httptransport.ListOrdersResponse{Orders: out}, nil
}

func toOrderResponse(order entities.Order) httptransport.OrderResponse {
	return httptransport.OrderResponse{
		OrderID:       order.OrderID,
		ProductID:     order.ProductID,
		ProductName:   order.ProductName,
		Amount:        order.Amount,
		LedgerEntryID: order.LedgerEntryID,
		CreatedAt:     order.CreatedAt,
	}
}
