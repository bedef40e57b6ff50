package record

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseInsensitiveAccess(t *testing.T) {
	rec := New(map[string]interface{}{"WAREHOUSE_NAME": "ANALYTICS_WH"})

	upper, ok := rec.Get("WAREHOUSE_NAME")
	require.True(t, ok)
	lower, ok := rec.Get("warehouse_name")
	require.True(t, ok)
	assert.Equal(t, upper, lower)
	assert.Equal(t, "ANALYTICS_WH", rec.String("Warehouse_Name"))
}

func TestAccessorsReportNull(t *testing.T) {
	rec := New(map[string]interface{}{"credits": nil, "auto_resume": "true", "n": 3.0})

	_, ok := rec.Float("credits")
	assert.False(t, ok)
	assert.Equal(t, 7.5, rec.FloatOr("credits", 7.5))
	assert.False(t, rec.Has("credits"))

	b, ok := rec.Bool("AUTO_RESUME")
	assert.True(t, ok)
	assert.True(t, b)

	n, ok := rec.Int("N")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = rec.Time("missing")
	assert.False(t, ok)
}

func TestFromRowsNormalizesNumbers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	started := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"warehouse_name", "TOTAL_CREDITS", "QUERY_COUNT", "LAST_QUERY"}).
		AddRow("ANALYTICS_WH", "123.456000000", int64(42), started).
		AddRow("ETL_WH", []byte("0.5"), nil, nil)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	sqlRows, err := db.Query("SELECT 1")
	require.NoError(t, err)
	defer sqlRows.Close()

	result, err := FromRows(sqlRows, "total_credits")
	require.NoError(t, err)
	require.Equal(t, 2, result.Len())
	assert.Equal(t, []string{"WAREHOUSE_NAME", "TOTAL_CREDITS", "QUERY_COUNT", "LAST_QUERY"}, result.Columns)

	first := result.Records[0]
	assert.Equal(t, 123.456, first["TOTAL_CREDITS"])
	assert.Equal(t, 42.0, first["QUERY_COUNT"])
	last, ok := first.Time("last_query")
	require.True(t, ok)
	assert.True(t, started.Equal(last))

	second := result.Records[1]
	assert.Equal(t, 0.5, second["TOTAL_CREDITS"])
	assert.Nil(t, second["QUERY_COUNT"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFromRowsRejectsBadNumeric(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow("lots"))

	sqlRows, err := db.Query("SELECT 1")
	require.NoError(t, err)
	defer sqlRows.Close()

	_, err = FromRows(sqlRows, "CREDITS")
	assert.Error(t, err)
}

func TestEmptyResult(t *testing.T) {
	r := &Result{}
	assert.True(t, r.Empty())
	assert.Equal(t, 0, r.Len())
}

func TestParseTimeSpellings(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{
		"2024-01-01T00:00:00Z",
		"2024-01-01T00:00Z",
		"2024-01-01 00:00:00.000 +0000",
		"2024-01-01 00:00:00",
		"2024-01-01 00:00",
		"2024-01-01T00:00",
		" 2024-01-01 ",
	} {
		got, ok := ParseTime(s)
		require.True(t, ok, s)
		assert.True(t, want.Equal(got), "%s parsed as %v", s, got)
	}

	_, ok := ParseTime("IMMEDIATELY")
	assert.False(t, ok)
}
