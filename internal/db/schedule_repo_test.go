package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rollcall/internal/types"
)

// scheduleMockRows implements pgx.Rows over pre-built schedule rows.
type scheduleMockRows struct {
	data   []*types.Schedule
	idx    int
	closed bool
	errVal error
}

func (r *scheduleMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx <= len(r.data)
}

func (r *scheduleMockRows) Scan(dest ...any) error {
	s := r.data[r.idx-1]
	*dest[0].(*string) = s.ID
	*dest[1].(*string) = s.Name
	*dest[2].(*string) = s.SenderName
	*dest[3].(*string) = string(s.Frequency)
	*dest[4].(*string) = s.DeliveryTime
	*dest[5].(*string) = s.Timezone
	*dest[6].(*string) = s.Template
	*dest[7].(*string) = s.AdminTemplate
	*dest[8].(*string) = s.EventID
	*dest[9].(*string) = s.TenantCode
	*dest[10].(*time.Time) = s.CreatedAt
	*dest[11].(*time.Time) = s.UpdatedAt
	return nil
}

func (r *scheduleMockRows) Close()                                        { r.closed = true }
func (r *scheduleMockRows) Err() error                                    { return r.errVal }
func (r *scheduleMockRows) CommandTag() pgconn.CommandTag                 { return pgconn.CommandTag{} }
func (r *scheduleMockRows) FieldDescriptions() []pgconn.FieldDescription  { return nil }
func (r *scheduleMockRows) RawValues() [][]byte                           { return nil }
func (r *scheduleMockRows) Values() ([]any, error)                        { return nil, nil }
func (r *scheduleMockRows) Conn() *pgx.Conn                               { return nil }

func TestScheduleRepository_GetByID_Success(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewScheduleRepository(dbm)
	ctx := context.Background()

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "sch_1"
			*dest[1].(*string) = "Weekly attendance"
			*dest[2].(*string) = "RollCall"
			*dest[3].(*string) = "weekly"
			*dest[4].(*string) = "07:00"
			*dest[5].(*string) = "Africa/Accra"
			*dest[6].(*string) = "Hi [FirstName], you had [ClockIns] clock-ins"
			*dest[7].(*string) = ""
			*dest[8].(*string) = "evt_42"
			*dest[9].(*string) = "acme"
			*dest[10].(*time.Time) = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			*dest[11].(*time.Time) = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			return nil
		},
	}
	dbm.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	s, err := repo.GetByID(ctx, "sch_1")
	require.NoError(t, err)
	assert.Equal(t, types.FreqWeekly, s.Frequency)
	assert.Equal(t, "RollCall", s.SenderName)
	assert.Equal(t, "Africa/Accra", s.Timezone)
}

func TestScheduleRepository_GetByID_NotFound(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewScheduleRepository(dbm)
	ctx := context.Background()

	dbm.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetByID(ctx, "sch_missing")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundSchedule, appErr.Code)
}

func TestScheduleRepository_Update_NotFound(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewScheduleRepository(dbm)
	ctx := context.Background()

	dbm.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.Update(ctx, &types.Schedule{ID: "sch_gone"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundSchedule, appErr.Code)
}

func TestScheduleRepository_Delete_Success(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewScheduleRepository(dbm)
	ctx := context.Background()

	dbm.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)

	require.NoError(t, repo.Delete(ctx, "sch_1"))
	dbm.AssertExpectations(t)
}

func TestScheduleRepository_GetManyByIDs(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewScheduleRepository(dbm)
	ctx := context.Background()

	rows := &scheduleMockRows{data: []*types.Schedule{
		{ID: "sch_1", Name: "Weekly", Frequency: types.FreqWeekly, Timezone: "UTC"},
		{ID: "sch_2", Name: "Monthly", Frequency: types.FreqMonthly, Timezone: "UTC"},
	}}
	dbm.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	result, err := repo.GetManyByIDs(ctx, []string{"sch_1", "sch_2", "sch_missing"})
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "Weekly", result["sch_1"].Name)
	assert.Equal(t, "Monthly", result["sch_2"].Name)
	_, ok := result["sch_missing"]
	assert.False(t, ok)
}

func TestScheduleRepository_GetManyByIDs_EmptyInput(t *testing.T) {
	dbm := new(mockDBTX)
	repo := NewScheduleRepository(dbm)

	result, err := repo.GetManyByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result)
	dbm.AssertNotCalled(t, "Query")
}
