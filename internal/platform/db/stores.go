package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pollstack/internal/platform/txcoord"
)

// Stores holds one connection per independently provisioned store.
type Stores struct {
	Users    *Postgres
	Payments *Postgres
	Research *Postgres
	Vote     *Postgres
}

// ConnectAll opens every store; dsns must carry an entry for each store id.
func ConnectAll(dsns map[txcoord.StoreID]string, pool Pool) (*Stores, error) {
	out := &Stores{}
	targets := []struct {
		id  txcoord.StoreID
		dst **Postgres
	}{
		{txcoord.StoreUsers, &out.Users},
		{txcoord.StorePayments, &out.Payments},
		{txcoord.StoreResearch, &out.Research},
		{txcoord.StoreVote, &out.Vote},
	}
	for _, target := range targets {
		conn, err := Connect(dsns[target.id], pool)
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("connect %s store: %w", target.id, err)
		}
		*target.dst = conn
	}
	return out, nil
}

// Sessions wraps each connection as a coordinator store.
func (s *Stores) Sessions(logger *slog.Logger) []txcoord.Store {
	return []txcoord.Store{
		NewStore(txcoord.StoreUsers, s.Users.DB, logger),
		NewStore(txcoord.StorePayments, s.Payments.DB, logger),
		NewStore(txcoord.StoreResearch, s.Research.DB, logger),
		NewStore(txcoord.StoreVote, s.Vote.DB, logger),
	}
}

// Ping checks every store and joins the failures.
func (s *Stores) Ping(ctx context.Context) error {
	var errs []error
	for id, conn := range map[txcoord.StoreID]*Postgres{
		txcoord.StoreUsers:    s.Users,
		txcoord.StorePayments: s.Payments,
		txcoord.StoreResearch: s.Research,
		txcoord.StoreVote:     s.Vote,
	} {
		if err := conn.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Stores) Close() error {
	if s == nil {
		return nil
	}
	return errors.Join(s.Users.Close(), s.Payments.Close(), s.Research.Close(), s.Vote.Close())
}
