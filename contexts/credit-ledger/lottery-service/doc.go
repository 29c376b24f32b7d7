// Package lotteryservice implements the reward lottery inside the
// credit-ledger context.
//
// Distribute picks winners uniformly among valid participants, credits each
// one through the ledger and flags the entity DISTRIBUTED in the same unit
// of work. The drawn winner set is persisted next to the payouts so reruns
// after a partial commit converge without paying anyone twice.
package lotteryservice
