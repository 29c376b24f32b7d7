// Package exchangeservice exchanges credit for products. The ledger debit
// and the order row commit together over the users and payments stores,
// and a replayed idempotency key returns the original order.
package exchangeservice
