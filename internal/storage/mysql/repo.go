package mysql

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"poi_ingest/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// maxRowsPerStatement keeps a statement well under MySQL's 65535 placeholders.
const maxRowsPerStatement = 1000

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// Migrate applies the bundled schema files in name order. The DSN must allow
// multiStatements.
func Migrate(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := migrations.ReadFile(n)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("apply %s: %w", n, err)
		}
	}
	return nil
}

// InsertBatch writes pois in one transaction with multi-row INSERTs. InnoDB
// hands a simple insert a consecutive id range, so ids are derived from
// LastInsertId.
func (r *Repo) InsertBatch(ctx context.Context, pois []domain.POI) (ids []int64, err error) {
	if len(pois) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ids = make([]int64, 0, len(pois))
	for start := 0; start < len(pois); start += maxRowsPerStatement {
		end := min(start+maxRowsPerStatement, len(pois))
		chunk := pois[start:end]

		values := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*6)
		for i, p := range chunk {
			values[i] = poiRowPlaceholders
			args = append(args, p.InternalID, p.Name, p.Category, p.Latitude, p.Longitude, p.Rating)
		}
		res, err := tx.ExecContext(ctx, insertPOIsPrefix+strings.Join(values, ","), args...)
		if err != nil {
			return nil, err
		}
		first, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		if n, err := res.RowsAffected(); err != nil || n != int64(len(chunk)) {
			return nil, fmt.Errorf("inserted %d of %d rows: %v", n, len(chunk), err)
		}
		for i := range chunk {
			ids = append(ids, first+int64(i))
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Repo) FindByInternalID(ctx context.Context, internalID string) ([]domain.POI, error) {
	rows, err := r.db.QueryContext(ctx, findByInternalIDSQL, internalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.POI
	for rows.Next() {
		var p domain.POI
		if err := rows.Scan(&p.ExternalID, &p.InternalID, &p.Name, &p.Category, &p.Latitude, &p.Longitude, &p.Rating); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, countPOIsSQL).Scan(&n)
	return n, err
}

var _ domain.POIRepository = (*Repo)(nil)
