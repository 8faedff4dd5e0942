package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryAuditRepo struct {
	rows []TimelineRow
}

func (r *memoryAuditRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	if offset >= len(r.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(r.rows) {
		end = len(r.rows)
	}
	return r.rows[offset:end], nil
}

func (r *memoryAuditRepo) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	return r.rows, nil
}

func makeRows(n int) []TimelineRow {
	rows := make([]TimelineRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, TimelineRow{
			At:         time.Date(2025, 6, 1, 12, 0, i, 0, time.UTC),
			ActorID:    int64(i + 1),
			ActorName:  "admin",
			ActorClass: "ADMIN",
			Action:     "ledger.transition",
			EntityType: "payment_ledger",
			EntityID:   "42",
		})
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	svc := NewService(&memoryAuditRepo{rows: makeRows(25)})

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, result.Rows, 20)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
}

func TestTimelineClampsPageSize(t *testing.T) {
	svc := NewService(&memoryAuditRepo{rows: makeRows(60)})

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 500})
	require.NoError(t, err)
	require.Len(t, result.Rows, 50)
}

func TestExportCSVIncludesHeaderAndRows(t *testing.T) {
	svc := NewService(&memoryAuditRepo{rows: makeRows(2)})

	data, err := svc.ExportCSV(context.Background(), TimelineFilters{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "occurred_at")
	require.Contains(t, lines[1], "ledger.transition")
}
