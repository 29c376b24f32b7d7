// Package ledgerservice implements the credit ledger inside the
// credit-ledger context.
//
// The module owns subject balances and their append-only entry history on
// the users store. Appends run inside a caller's unit of work so a balance
// change always commits together with the business write that caused it.
// The cached balance is updated under an optimistic version check and is
// never written without its entry.
package ledgerservice
