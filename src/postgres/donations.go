package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/onemorebsmith/zdt/src/model"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Expected schema:
//
//	CREATE TABLE donations (
//	    txid          TEXT PRIMARY KEY,
//	    amount_zat    BIGINT NOT NULL,
//	    confirmations INT NOT NULL,
//	    block_time    TIMESTAMPTZ,
//	    memo          TEXT,
//	    pending       BOOLEAN NOT NULL,
//	    updated       TIMESTAMPTZ NOT NULL
//	);

// PutDonation upserts a single record on txid. Confirmations only move
// forward in the table, mirroring the in-memory merge contract.
func PutDonation(ctx context.Context, d *model.Donation) error {
	return DoQuery(ctx, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx,
			`INSERT into donations(txid, amount_zat, confirmations, block_time, memo, pending, updated)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (txid) DO UPDATE SET
					confirmations = GREATEST(donations.confirmations, EXCLUDED.confirmations),
					block_time    = COALESCE(donations.block_time, EXCLUDED.block_time),
					memo          = COALESCE(donations.memo, EXCLUDED.memo),
					pending       = EXCLUDED.pending,
					updated       = EXCLUDED.updated`,
			d.TxID, d.AmountZat(), d.Confirmations, d.Timestamp, d.Memo, d.Pending, time.Now().UTC())
		if err != nil {
			return errors.Wrapf(err, "failed to record donation %s to database", d.TxID)
		}
		return nil
	})
}

func PutDonations(ctx context.Context, donations []model.Donation) error {
	for i := range donations {
		if err := PutDonation(ctx, &donations[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetDonations loads the full snapshot. Rows that fail to scan are treated
// as snapshot corruption and surfaced to the caller, which falls back to an
// empty store and a full re-scan.
func GetDonations(ctx context.Context) ([]model.Donation, error) {
	var fetched []model.Donation
	return fetched, DoQuery(ctx, func(conn *pgx.Conn) error {
		cur, err := conn.Query(ctx,
			`SELECT txid, amount_zat, confirmations, block_time, memo, pending
			 FROM donations ORDER BY txid`)
		if err != nil {
			return errors.Wrap(err, "failed to fetch donations from database")
		}
		defer cur.Close()

		for cur.Next() {
			var (
				txid          string
				amountZat     int64
				confirmations int
				blockTime     *time.Time
				memo          *string
				pending       bool
			)
			if err := cur.Scan(&txid, &amountZat, &confirmations, &blockTime, &memo, &pending); err != nil {
				return errors.Wrap(err, "corrupt donation snapshot row")
			}
			if blockTime != nil {
				utc := blockTime.UTC()
				blockTime = &utc
			}
			fetched = append(fetched, model.Donation{
				TxID:          txid,
				Amount:        decimal.New(amountZat, model.ZatoshiExponent),
				Confirmations: confirmations,
				Timestamp:     blockTime,
				Memo:          memo,
				Pending:       pending,
			})
		}
		return cur.Err()
	})
}
