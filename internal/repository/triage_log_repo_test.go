package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxtriage/internal/model"
)

type execCall struct {
	sql  string
	args []any
}

type fakeQuerier struct {
	execs   []execCall
	execErr error
	rows    *fakeRows
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.rows == nil {
		return nil, errors.New("no rows configured")
	}
	return f.rows, nil
}

// fakeRows 只实现 CountByCategory 用到的方法
type fakeRows struct {
	pgx.Rows
	data   [][2]any
	pos    int
	closed bool
	err    error
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	*(dest[0].(*string)) = row[0].(string)
	*(dest[1].(*int64)) = row[1].(int64)
	return nil
}

func (r *fakeRows) Err() error { return r.err }
func (r *fakeRows) Close()     { r.closed = true }

func TestTriageLogRepository_EnsureSchema(t *testing.T) {
	q := &fakeQuerier{}
	repo := NewTriageLogRepository(q)

	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.Len(t, q.execs, 1)
	assert.Contains(t, q.execs[0].sql, "CREATE TABLE IF NOT EXISTS triage_log")
}

func TestTriageLogRepository_Record(t *testing.T) {
	q := &fakeQuerier{}
	repo := NewTriageLogRepository(q)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	err := repo.Record(context.Background(), model.TriageRecord{
		TraceID:     "t-1",
		Source:      model.SourceThreadRow,
		Subject:     "Offer: Senior Engineer",
		Sender:      "hr@acme.com",
		Category:    model.CategoryJob,
		LabelTitle:  "Job/Recruiter",
		Outcome:     "labeled",
		ProcessedAt: at,
	})
	require.NoError(t, err)
	require.Len(t, q.execs, 1)
	assert.True(t, strings.Contains(q.execs[0].sql, "INSERT INTO triage_log"))
	assert.Equal(t, []any{
		"t-1", "thread_row", "Offer: Senior Engineer", "hr@acme.com",
		"JOB", "Job/Recruiter", "labeled", "", at,
	}, q.execs[0].args)
}

func TestTriageLogRepository_RecordError(t *testing.T) {
	q := &fakeQuerier{execErr: errors.New("connection refused")}
	repo := NewTriageLogRepository(q)

	err := repo.Record(context.Background(), model.TriageRecord{Subject: "x", Outcome: "failed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestTriageLogRepository_CountByCategory(t *testing.T) {
	rows := &fakeRows{data: [][2]any{{"JOB", int64(3)}, {"", int64(1)}}}
	q := &fakeQuerier{rows: rows}
	repo := NewTriageLogRepository(q)
	since := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	counts, err := repo.CountByCategory(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, []CategoryCount{{Category: "JOB", Count: 3}, {Category: "", Count: 1}}, counts)
	assert.True(t, rows.closed)
	assert.Equal(t, []any{since}, q.execs[0].args)
}

func TestTriageLogRepository_CountByCategoryRowsError(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{err: errors.New("broken")}}
	repo := NewTriageLogRepository(q)

	_, err := repo.CountByCategory(context.Background(), time.Time{})
	assert.Error(t, err)
}
