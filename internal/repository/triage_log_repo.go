package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"inboxtriage/internal/model"
)

// Querier *pgxpool.Pool 和 pgx.Tx 都满足
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS triage_log (
    id           BIGSERIAL PRIMARY KEY,
    trace_id     TEXT        NOT NULL DEFAULT '',
    source       TEXT        NOT NULL,
    subject      TEXT        NOT NULL,
    sender       TEXT        NOT NULL DEFAULT '',
    category     TEXT        NOT NULL DEFAULT '',
    label_title  TEXT        NOT NULL DEFAULT '',
    outcome      TEXT        NOT NULL,
    error        TEXT        NOT NULL DEFAULT '',
    processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_triage_log_processed_at ON triage_log (processed_at);
`

// TriageLogRepository 每次完成的 pipeline 尝试写一行审计日志
type TriageLogRepository struct {
	db Querier
}

func NewTriageLogRepository(db Querier) *TriageLogRepository {
	return &TriageLogRepository{db: db}
}

func (r *TriageLogRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure triage_log schema: %w", err)
	}
	return nil
}

func (r *TriageLogRepository) Record(ctx context.Context, rec model.TriageRecord) error {
	query := `
        INSERT INTO triage_log (trace_id, source, subject, sender, category, label_title, outcome, error, processed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	processedAt := rec.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}
	_, err := r.db.Exec(ctx, query,
		rec.TraceID,
		rec.Source.String(),
		rec.Subject,
		rec.Sender,
		string(rec.Category),
		rec.LabelTitle,
		rec.Outcome,
		rec.Error,
		processedAt,
	)
	if err != nil {
		return fmt.Errorf("insert triage_log: %w", err)
	}
	return nil
}

// CategoryCount 某个类别的处理条数
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// CountByCategory 统计 since 之后各类别的条数；失败的尝试归在空类别下
func (r *TriageLogRepository) CountByCategory(ctx context.Context, since time.Time) ([]CategoryCount, error) {
	query := `
        SELECT category, COUNT(*)
        FROM triage_log
        WHERE processed_at >= $1
        GROUP BY category
        ORDER BY COUNT(*) DESC, category
    `
	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("count triage_log by category: %w", err)
	}
	defer rows.Close()

	var out []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return out, nil
}
