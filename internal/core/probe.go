package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pgenv/pgenv/internal/postmaster"
)

// readyQuery is the trivial query used to confirm the server both accepts
// connections and answers them correctly.
const readyQuery = "SELECT 42"

// readyValue is the single value readyQuery must return.
const readyValue = 42

// defaultProbe returns a ProbeFunc that opens a fresh connection to url,
// runs the readiness query, and validates the result: exactly one row
// whose single column equals the expected constant. Zero rows, a wrong
// value, or extra rows all count as "not ready yet" and are retried like
// connection failures.
func defaultProbe(url string) postmaster.ProbeFunc {
	return func(ctx context.Context) error {
		conn, err := pgx.Connect(ctx, url)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close(ctx) }()

		rows, err := conn.Query(ctx, readyQuery)
		if err != nil {
			return err
		}
		defer rows.Close()

		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return fmt.Errorf("readiness query returned no rows")
		}
		var got int
		if err := rows.Scan(&got); err != nil {
			return err
		}
		if got != readyValue {
			return fmt.Errorf("readiness query returned %d, want %d", got, readyValue)
		}
		if rows.Next() {
			return fmt.Errorf("readiness query returned multiple rows")
		}
		return rows.Err()
	}
}
