package scoring

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// OpenCorpus opens the corpus database holding the turns table.
func OpenCorpus(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	return db, nil
}

// TurnFilter bounds the corpus slice handed to the pipeline.
type TurnFilter struct {
	MinLength int
	Role      string // exact role match; "both" disables the filter
	AfterID   int64  // exclusive lower bound on id
	Limit     int    // 0 = no limit
}

// ReadTurns returns the matching turns ordered by ascending id, fully
// materialized so the total count is known up front. Every filter value is
// bound as a query parameter, never interpolated into the query text.
func ReadTurns(ctx context.Context, db *sql.DB, f TurnFilter) ([]Turn, error) {
	where := []string{"length(content) >= ?"}
	args := []any{f.MinLength}
	if f.Role != "" && f.Role != "both" {
		where = append(where, "role = ?")
		args = append(args, f.Role)
	}
	if f.AfterID > 0 {
		where = append(where, "id > ?")
		args = append(args, f.AfterID)
	}

	query := "SELECT id, role, content, channel FROM messages WHERE " +
		strings.Join(where, " AND ") + " ORDER BY id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &t.Channel); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read turns: %w", err)
	}
	return turns, nil
}
