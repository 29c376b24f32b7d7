package httptransport

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type ExchangeRequest struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Amount      int64  `json:"amount"`
}

type OrderResponse struct {
	OrderID       string    `json:"order_id"`
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name"`
	Amount        int64     `json:"amount"`
	LedgerEntryID string    `json:"ledger_entry_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type ExchangeResponse struct {
	Order    OrderResponse `json:"order"`
	Balance  int64         `json:"balance,omitempty"`
	Replayed bool          `json:"replayed"`
}

type ListOrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
}
