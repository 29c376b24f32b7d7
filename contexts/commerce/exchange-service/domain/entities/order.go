package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Order is a product exchanged for credit. It is unique per subject and
// idempotency key.
type Order struct {
	OrderID        string
	SubjectID      string
	ProductID      string
	ProductName    string
	Amount         int64
	IdempotencyKey string
	RequestHash    string
	LedgerEntryID  string
	CreatedAt      time.Time
}

// RequestHash fingerprints an exchange request so a reused idempotency key
// can be told apart from a genuine replay.
func RequestHash(subjectID string, productID string, amount int64) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{"exchange_product", subjectID, productID, strconv.FormatInt(amount, 10)}, "|")))
	return hex.EncodeToString(sum[:])
}

// ChargeReference ties the ledger debit to the idempotency key so an order
// lost to a partial commit can be rebuilt without charging twice.
func ChargeReference(idempotencyKey string) string {
	return "exchange:" + idempotencyKey
}
