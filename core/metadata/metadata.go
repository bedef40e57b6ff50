// Package metadata is the fixed catalog of account-usage queries and the
// typed readers that map their results into analysis inputs.
package metadata

import (
	"context"
	"time"

	"go.uber.org/zap"

	"snowops/core/record"
	"snowops/internal/logging"
)

// MaxViewLatency is the worst-case lag of the account-usage views. Nothing
// more recent than this is evidence of inactivity.
const MaxViewLatency = 3 * time.Hour

// Account-usage views
const (
	ViewQueryHistory     = "SNOWFLAKE.ACCOUNT_USAGE.QUERY_HISTORY"
	ViewMeteringHistory  = "SNOWFLAKE.ACCOUNT_USAGE.WAREHOUSE_METERING_HISTORY"
	ViewLoadHistory      = "SNOWFLAKE.ACCOUNT_USAGE.WAREHOUSE_LOAD_HISTORY"
	ViewGrantsToRoles    = "SNOWFLAKE.ACCOUNT_USAGE.GRANTS_TO_ROLES"
	ViewGrantsToUsers    = "SNOWFLAKE.ACCOUNT_USAGE.GRANTS_TO_USERS"
	ViewLoginHistory     = "SNOWFLAKE.ACCOUNT_USAGE.LOGIN_HISTORY"
	ViewUsers            = "SNOWFLAKE.ACCOUNT_USAGE.USERS"
	ViewRoles            = "SNOWFLAKE.ACCOUNT_USAGE.ROLES"
	ViewTables           = "SNOWFLAKE.ACCOUNT_USAGE.TABLES"
	ViewColumns          = "SNOWFLAKE.ACCOUNT_USAGE.COLUMNS"
	ViewDatabases        = "SNOWFLAKE.ACCOUNT_USAGE.DATABASES"
	ViewTagReferences    = "SNOWFLAKE.ACCOUNT_USAGE.TAG_REFERENCES"
	ViewExplainPlan      = "SYSTEM$EXPLAIN_PLAN_JSON"
)

// Querier runs a read statement and returns a normalized result.
type Querier interface {
	Query(ctx context.Context, statement string, numeric []string, args ...interface{}) (*record.Result, error)
}

// Filter scopes a catalog query.
type Filter struct {
	// Days is the lookback window
	Days int

	// Warehouse restricts the query to one warehouse when set
	Warehouse string
}

// warehouseArg binds an optional warehouse filter; NULL matches all rows.
func (f Filter) warehouseArg() interface{} {
	return optional(f.Warehouse)
}

func optional(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Reader runs catalog queries through a Querier.
type Reader struct {
	q      Querier
	logger *zap.Logger
}

// NewReader creates a reader
func NewReader(q Querier, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Reader{q: q, logger: logger}
}

func (r *Reader) run(ctx context.Context, query Query, args ...interface{}) ([]record.Record, error) {
	r.logger.Debug("running catalog query",
		zap.String("query", query.Name),
		zap.String("view", query.View))

	result, err := r.q.Query(ctx, query.SQL, query.Numeric, args...)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("catalog query returned",
		zap.String("query", query.Name),
		zap.Int("rows", result.Len()))
	return result.Records, nil
}
