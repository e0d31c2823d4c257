// Package sqlstore is a concrete headerfetch.Chain backed by SQL, grounded
// in the teacher's own pair/mysqltest query style (sqlx.Queryx +
// StructScan against db-tagged structs) and reusing go-sql-driver/mysql as
// the driver underneath jmoiron/sqlx.
package sqlstore

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/VictoriaMetrics/fastcache"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/ethfetch/headerpipe/fetcher"
	"github.com/ethfetch/headerpipe/headerfetch"
)

// headerRow is the db-tagged row shape, the same idiom the teacher's
// pair/types.Triangle uses for sqlx.StructScan. Number is kept as a decimal
// string rather than a native integer column so block numbers beyond
// 64 bits round-trip without loss.
type headerRow struct {
	Number     string `db:"number"`
	Hash       string `db:"hash"`
	ParentHash string `db:"parent_hash"`
}

func toRow(h headerfetch.Header) headerRow {
	return headerRow{
		Number:     h.Number.String(),
		Hash:       hex.EncodeToString(h.Hash[:]),
		ParentHash: hex.EncodeToString(h.ParentHash[:]),
	}
}

// Store is a SQL-backed headerfetch.Chain. It caches recently-seen hashes
// in a fastcache byte cache so a contiguous backfill doesn't round-trip to
// the database to confirm every single parent link.
type Store struct {
	db    *sqlx.DB
	cache *fastcache.Cache
	table string
}

// Open connects via driverName/dsn (mysql in production, matching the
// teacher's stack) and wraps table with a cacheSizeBytes recent-hash cache.
func Open(driverName, dsn, table string, cacheSizeBytes int) (*Store, error) {
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connect: %w", err)
	}
	return &Store{
		db:    db,
		cache: fastcache.New(cacheSizeBytes),
		table: table,
	}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// PutHeaders implements headerfetch.Chain. It first confirms headers[0]'s
// parent is already known (cache or table lookup); a miss there is the
// reorg signal the storage sink watches for (fetcher.IsReorgHint), returned
// as a typed fetcher.ParentHeaderMissingError per §9's preference over
// string sniffing.
func (s *Store) PutHeaders(headers []headerfetch.Header) (int, error) {
	if len(headers) == 0 {
		return 0, nil
	}
	if err := s.checkParent(headers[0]); err != nil {
		return 0, err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: begin: %w", err)
	}
	stmt := fmt.Sprintf(
		"INSERT IGNORE INTO %s (number, hash, parent_hash) VALUES (:number, :hash, :parent_hash)",
		s.table,
	)
	accepted := 0
	for _, h := range headers {
		row := toRow(h)
		res, err := tx.NamedExec(stmt, row)
		if err != nil {
			tx.Rollback()
			return accepted, fmt.Errorf("sqlstore: insert header %s: %w", row.Number, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			accepted++
			s.cache.Set([]byte(row.Hash), []byte(row.Number))
		}
	}
	if err := tx.Commit(); err != nil {
		return accepted, fmt.Errorf("sqlstore: commit: %w", err)
	}
	return accepted, nil
}

func (s *Store) checkParent(first headerfetch.Header) error {
	if first.Number.Cmp(big.NewInt(0)) == 0 {
		return nil // genesis has no parent to confirm
	}
	parentHex := hex.EncodeToString(first.ParentHash[:])
	if s.cache.Has([]byte(parentHex)) {
		return nil
	}
	var count int
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE hash = ?", s.table)
	if err := s.db.Get(&count, q, parentHex); err != nil {
		return fmt.Errorf("sqlstore: parent lookup: %w", err)
	}
	if count == 0 {
		return &fetcher.ParentHeaderMissingError{
			Cause: fmt.Errorf("parent %s not found for block %s", parentHex, first.Number),
		}
	}
	return nil
}

var _ headerfetch.Chain = (*Store)(nil)
