package metadata

// Query is one catalog entry. Parameters are always bound, never interpolated.
type Query struct {
	Name    string
	View    string
	SQL     string
	Numeric []string
}

// QueryWarehouseLoad reports hourly concurrency per warehouse.
// Args: days, warehouse, days.
var QueryWarehouseLoad = Query{
	Name: "warehouse_load",
	View: ViewLoadHistory,
	SQL: `WITH hourly AS (
    SELECT warehouse_name,
           DATE_TRUNC('hour', start_time) AS hour,
           MAX(avg_running) AS running,
           MAX(avg_queued_load) AS queued
    FROM SNOWFLAKE.ACCOUNT_USAGE.WAREHOUSE_LOAD_HISTORY
    WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
      AND warehouse_name = COALESCE(?, warehouse_name)
    GROUP BY 1, 2
),
sizes AS (
    SELECT warehouse_name, MAX_BY(warehouse_size, start_time) AS warehouse_size
    FROM SNOWFLAKE.ACCOUNT_USAGE.QUERY_HISTORY
    WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
      AND warehouse_size IS NOT NULL
    GROUP BY 1
)
SELECT h.warehouse_name,
       s.warehouse_size,
       COUNT(*) AS active_hours,
       MAX(h.running) AS peak_concurrency,
       AVG(h.running) AS avg_concurrency,
       COUNT_IF(h.queued > 0) AS queued_hours
FROM hourly h
LEFT JOIN sizes s ON s.warehouse_name = h.warehouse_name
WHERE h.running > 0
GROUP BY 1, 2
ORDER BY 1`,
	Numeric: []string{"ACTIVE_HOURS", "PEAK_CONCURRENCY", "AVG_CONCURRENCY", "QUEUED_HOURS"},
}

// QueryWarehouseActivity reports last use and credits burned since.
// Args: days, warehouse, days, warehouse.
var QueryWarehouseActivity = Query{
	Name: "warehouse_activity",
	View: ViewMeteringHistory,
	SQL: `WITH metering AS (
    SELECT warehouse_name, start_time, credits_used
    FROM SNOWFLAKE.ACCOUNT_USAGE.WAREHOUSE_METERING_HISTORY
    WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
      AND warehouse_name = COALESCE(?, warehouse_name)
),
queries AS (
    SELECT warehouse_name,
           MAX(end_time) AS last_query_end,
           MAX_BY(warehouse_size, end_time) AS warehouse_size,
           COUNT(*) AS query_count
    FROM SNOWFLAKE.ACCOUNT_USAGE.QUERY_HISTORY
    WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
      AND warehouse_name IS NOT NULL
      AND warehouse_name = COALESCE(?, warehouse_name)
    GROUP BY 1
)
SELECT COALESCE(m.warehouse_name, q.warehouse_name) AS warehouse_name,
       q.warehouse_size,
       q.last_query_end,
       COALESCE(q.query_count, 0) AS query_count,
       COALESCE(SUM(m.credits_used), 0) AS credits_in_window,
       COALESCE(SUM(IFF(q.last_query_end IS NULL OR m.start_time >= q.last_query_end, m.credits_used, 0)), 0) AS credits_since_last_use
FROM metering m
FULL OUTER JOIN queries q ON q.warehouse_name = m.warehouse_name
GROUP BY 1, 2, 3, 4
ORDER BY 1`,
	Numeric: []string{"QUERY_COUNT", "CREDITS_IN_WINDOW", "CREDITS_SINCE_LAST_USE"},
}

// QueryQueryGaps reports the median gap between successive queries.
// Args: days, warehouse, days.
var QueryQueryGaps = Query{
	Name: "query_gaps",
	View: ViewQueryHistory,
	SQL: `WITH gaps AS (
    SELECT warehouse_name,
           DATEDIFF(second, LAG(start_time) OVER (PARTITION BY warehouse_name ORDER BY start_time), start_time) AS gap_seconds
    FROM SNOWFLAKE.ACCOUNT_USAGE.QUERY_HISTORY
    WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
      AND warehouse_name IS NOT NULL
      AND warehouse_name = COALESCE(?, warehouse_name)
),
idle AS (
    SELECT warehouse_name,
           SUM(IFF(credits_used_compute = 0 AND credits_used_cloud_services > 0, credits_used_cloud_services, 0)) AS idle_credits
    FROM SNOWFLAKE.ACCOUNT_USAGE.WAREHOUSE_METERING_HISTORY
    WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
    GROUP BY 1
)
SELECT g.warehouse_name,
       COUNT(*) AS query_count,
       MEDIAN(g.gap_seconds) AS median_gap_seconds,
       COALESCE(MAX(i.idle_credits), 0) AS idle_credits
FROM gaps g
LEFT JOIN idle i ON i.warehouse_name = g.warehouse_name
GROUP BY 1
ORDER BY 1`,
	Numeric: []string{"QUERY_COUNT", "MEDIAN_GAP_SECONDS", "IDLE_CREDITS"},
}

// QueryScalingProfile reports business-hours and off-hours concurrency.
// Args: days, warehouse.
var QueryScalingProfile = Query{
	Name: "scaling_profile",
	View: ViewLoadHistory,
	SQL: `WITH hourly AS (
    SELECT warehouse_name,
           DATE_TRUNC('hour', start_time) AS hour,
           MAX(avg_running) AS running,
           MAX(avg_queued_load) AS queued
    FROM SNOWFLAKE.ACCOUNT_USAGE.WAREHOUSE_LOAD_HISTORY
    WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
      AND warehouse_name = COALESCE(?, warehouse_name)
    GROUP BY 1, 2
)
SELECT warehouse_name,
       COUNT(*) AS active_hours,
       MAX(running) AS peak_concurrency,
       AVG(running) AS avg_concurrency,
       MAX(IFF(HOUR(hour) BETWEEN 8 AND 17 AND DAYOFWEEKISO(hour) <= 5, running, 0)) AS business_hours_peak,
       MAX(IFF(HOUR(hour) BETWEEN 8 AND 17 AND DAYOFWEEKISO(hour) <= 5, 0, running)) AS off_hours_peak,
       COUNT_IF(queued > 0) AS queued_hours,
       MAX(queued) AS max_queued
FROM hourly
WHERE running > 0
GROUP BY 1
ORDER BY 1`,
	Numeric: []string{"ACTIVE_HOURS", "PEAK_CONCURRENCY", "AVG_CONCURRENCY", "BUSINESS_HOURS_PEAK", "OFF_HOURS_PEAK", "QUEUED_HOURS", "MAX_QUEUED"},
}

// QueryCreditHistory reports daily credits per warehouse.
// Args: days, warehouse.
var QueryCreditHistory = Query{
	Name: "credit_history",
	View: ViewMeteringHistory,
	SQL: `SELECT warehouse_name,
       DATE_TRUNC('day', start_time) AS day,
       SUM(credits_used) AS credits
FROM SNOWFLAKE.ACCOUNT_USAGE.WAREHOUSE_METERING_HISTORY
WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
  AND warehouse_name = COALESCE(?, warehouse_name)
GROUP BY 1, 2
ORDER BY 1, 2`,
	Numeric: []string{"CREDITS"},
}

// QueryDailyCredits reports account-wide credits per day.
// Args: days.
var QueryDailyCredits = Query{
	Name: "daily_credits",
	View: ViewMeteringHistory,
	SQL: `SELECT DATE_TRUNC('day', start_time) AS day,
       SUM(credits_used) AS credits
FROM SNOWFLAKE.ACCOUNT_USAGE.WAREHOUSE_METERING_HISTORY
WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
GROUP BY 1
ORDER BY 1`,
	Numeric: []string{"CREDITS"},
}

// QueryWarehouseCredits reports total credits per warehouse.
// Args: days, warehouse.
var QueryWarehouseCredits = Query{
	Name: "warehouse_credits",
	View: ViewMeteringHistory,
	SQL: `SELECT warehouse_name,
       SUM(credits_used) AS credits
FROM SNOWFLAKE.ACCOUNT_USAGE.WAREHOUSE_METERING_HISTORY
WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
  AND warehouse_name = COALESCE(?, warehouse_name)
GROUP BY 1
ORDER BY 1`,
	Numeric: []string{"CREDITS"},
}

// QueryWarehouseUsage reports credits, activity and current size per warehouse.
// Args: days, warehouse, days.
var QueryWarehouseUsage = Query{
	Name: "warehouse_usage",
	View: ViewMeteringHistory,
	SQL: `WITH metering AS (
    SELECT warehouse_name,
           SUM(credits_used) AS total_credits,
           SUM(credits_used_compute) AS compute_credits,
           SUM(credits_used_cloud_services) AS cloud_services_credits,
           COUNT(DISTINCT DATE_TRUNC('day', start_time)) AS active_days,
           COUNT(DISTINCT IFF(credits_used_compute > 0, DATE_TRUNC('hour', start_time), NULL)) AS active_hours,
           MIN(start_time) AS first_usage,
           MAX(end_time) AS last_usage
    FROM SNOWFLAKE.ACCOUNT_USAGE.WAREHOUSE_METERING_HISTORY
    WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
      AND warehouse_name = COALESCE(?, warehouse_name)
    GROUP BY 1
),
queries AS (
    SELECT warehouse_name,
           MAX_BY(warehouse_size, start_time) AS warehouse_size,
           COUNT(*) AS query_count
    FROM SNOWFLAKE.ACCOUNT_USAGE.QUERY_HISTORY
    WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
      AND warehouse_name IS NOT NULL
    GROUP BY 1
)
SELECT m.warehouse_name,
       q.warehouse_size,
       m.total_credits,
       m.compute_credits,
       m.cloud_services_credits,
       m.active_days,
       m.active_hours,
       COALESCE(q.query_count, 0) AS query_count,
       m.first_usage,
       m.last_usage
FROM metering m
LEFT JOIN queries q ON q.warehouse_name = m.warehouse_name
ORDER BY m.total_credits DESC, 1`,
	Numeric: []string{"TOTAL_CREDITS", "COMPUTE_CREDITS", "CLOUD_SERVICES_CREDITS", "ACTIVE_DAYS", "ACTIVE_HOURS", "QUERY_COUNT"},
}

// tagged resource listings; chosen from a fixed set, never from input
var taggedResourceQueries = map[string]Query{
	"warehouse": {
		Name: "tagged_warehouses",
		View: ViewTagReferences,
		SQL: `WITH resources AS (
    SELECT DISTINCT warehouse_name AS resource_name, NULL AS owner
    FROM SNOWFLAKE.ACCOUNT_USAGE.QUERY_HISTORY
    WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
      AND warehouse_name IS NOT NULL
)
SELECT r.resource_name, r.owner, t.tag_name, t.tag_value
FROM resources r
LEFT JOIN SNOWFLAKE.ACCOUNT_USAGE.TAG_REFERENCES t
  ON t.domain = 'WAREHOUSE' AND t.object_name = r.resource_name AND t.object_deleted IS NULL
ORDER BY 1, 3`,
	},
	"database": {
		Name: "tagged_databases",
		View: ViewDatabases,
		SQL: `SELECT d.database_name AS resource_name, d.database_owner AS owner, t.tag_name, t.tag_value
FROM SNOWFLAKE.ACCOUNT_USAGE.DATABASES d
LEFT JOIN SNOWFLAKE.ACCOUNT_USAGE.TAG_REFERENCES t
  ON t.domain = 'DATABASE' AND t.object_name = d.database_name AND t.object_deleted IS NULL
WHERE d.deleted IS NULL
ORDER BY 1, 3`,
	},
	"table": {
		Name: "tagged_tables",
		View: ViewTables,
		SQL: `WITH resources AS (
    SELECT table_catalog, table_schema, table_name, table_owner
    FROM SNOWFLAKE.ACCOUNT_USAGE.TABLES
    WHERE deleted IS NULL
      AND table_type = 'BASE TABLE'
    ORDER BY 1, 2, 3
    LIMIT 1000
)
SELECT r.table_catalog || '.' || r.table_schema || '.' || r.table_name AS resource_name,
       r.table_owner AS owner,
       t.tag_name,
       t.tag_value
FROM resources r
LEFT JOIN SNOWFLAKE.ACCOUNT_USAGE.TAG_REFERENCES t
  ON t.domain = 'TABLE'
 AND t.object_database = r.table_catalog
 AND t.object_schema = r.table_schema
 AND t.object_name = r.table_name
 AND t.object_deleted IS NULL
ORDER BY 1, 3`,
	},
}

// TaggedResourceKinds lists the kinds TaggedResources accepts
var TaggedResourceKinds = []string{"warehouse", "database", "table"}

// attribution subject columns; chosen from a fixed set, never from input
var subjectColumns = map[string]string{
	"user":     "user_name",
	"role":     "role_name",
	"database": "database_name",
}

// QueryElapsedBy reports elapsed query time per warehouse and subject.
// Args: days, warehouse.
func QueryElapsedBy(subjectColumn string) Query {
	return Query{
		Name: "query_elapsed_by_" + subjectColumn,
		View: ViewQueryHistory,
		SQL: `SELECT warehouse_name,
       COALESCE(` + subjectColumn + `, '(none)') AS subject,
       COUNT(*) AS query_count,
       SUM(total_elapsed_time) AS elapsed_ms
FROM SNOWFLAKE.ACCOUNT_USAGE.QUERY_HISTORY
WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
  AND warehouse_name IS NOT NULL
  AND warehouse_name = COALESCE(?, warehouse_name)
  AND execution_status = 'SUCCESS'
GROUP BY 1, 2
ORDER BY 1, 2`,
		Numeric: []string{"QUERY_COUNT", "ELAPSED_MS"},
	}
}

// QueryTableScans reports recent queries that reference a table.
// Args: days, table pattern.
var QueryTableScans = Query{
	Name: "table_scans",
	View: ViewQueryHistory,
	SQL: `SELECT query_id,
       query_text,
       partitions_scanned,
       partitions_total
FROM SNOWFLAKE.ACCOUNT_USAGE.QUERY_HISTORY
WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
  AND execution_status = 'SUCCESS'
  AND query_type = 'SELECT'
  AND query_text ILIKE ?
ORDER BY start_time DESC
LIMIT 1000`,
	Numeric: []string{"PARTITIONS_SCANNED", "PARTITIONS_TOTAL"},
}

// QueryTableColumns lists the live columns of a table.
// Args: database, schema, table.
var QueryTableColumns = Query{
	Name: "table_columns",
	View: ViewColumns,
	SQL: `SELECT column_name, data_type
FROM SNOWFLAKE.ACCOUNT_USAGE.COLUMNS
WHERE table_catalog = ?
  AND table_schema = ?
  AND table_name = ?
  AND deleted IS NULL
ORDER BY ordinal_position`,
}

// QueryTableSize reports row count and clustering of a table.
// Args: database, schema, table.
var QueryTableSize = Query{
	Name: "table_size",
	View: ViewTables,
	SQL: `SELECT row_count, bytes, clustering_key
FROM SNOWFLAKE.ACCOUNT_USAGE.TABLES
WHERE table_catalog = ?
  AND table_schema = ?
  AND table_name = ?
  AND deleted IS NULL`,
	Numeric: []string{"ROW_COUNT", "BYTES"},
}

// QuerySlowQueries reports successful queries over a duration cutoff.
// Args: days, min seconds, warehouse.
var QuerySlowQueries = Query{
	Name: "slow_queries",
	View: ViewQueryHistory,
	SQL: `SELECT query_id,
       query_text,
       user_name,
       warehouse_name,
       warehouse_size,
       total_elapsed_time / 1000.0 AS total_seconds,
       compilation_time / 1000.0 AS compilation_seconds,
       (queued_provisioning_time + queued_repair_time + queued_overload_time) / 1000.0 AS queued_seconds,
       transaction_blocked_time / 1000.0 AS blocked_seconds,
       bytes_scanned,
       bytes_spilled_to_local_storage,
       bytes_spilled_to_remote_storage,
       partitions_scanned,
       partitions_total
FROM SNOWFLAKE.ACCOUNT_USAGE.QUERY_HISTORY
WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
  AND execution_status = 'SUCCESS'
  AND total_elapsed_time / 1000.0 >= ?
  AND COALESCE(warehouse_name, '') = COALESCE(?, warehouse_name, '')
ORDER BY total_elapsed_time DESC
LIMIT 100`,
	Numeric: []string{
		"TOTAL_SECONDS", "COMPILATION_SECONDS", "QUEUED_SECONDS", "BLOCKED_SECONDS",
		"BYTES_SCANNED", "BYTES_SPILLED_TO_LOCAL_STORAGE", "BYTES_SPILLED_TO_REMOTE_STORAGE",
		"PARTITIONS_SCANNED", "PARTITIONS_TOTAL",
	},
}

// QueryQueryInfo reports one query by id.
// Args: query id.
var QueryQueryInfo = Query{
	Name: "query_info",
	View: ViewQueryHistory,
	SQL: `SELECT query_id,
       query_text,
       user_name,
       role_name,
       warehouse_name,
       database_name,
       total_elapsed_time,
       bytes_scanned,
       partitions_scanned,
       partitions_total,
       credits_used_cloud_services,
       start_time,
       end_time
FROM SNOWFLAKE.ACCOUNT_USAGE.QUERY_HISTORY
WHERE query_id = ?`,
	Numeric: []string{"TOTAL_ELAPSED_TIME", "BYTES_SCANNED", "PARTITIONS_SCANNED", "PARTITIONS_TOTAL", "CREDITS_USED_CLOUD_SERVICES"},
}

// QueryExplainPlan asks the platform for a JSON plan of a statement.
// Args: statement text.
var QueryExplainPlan = Query{
	Name: "explain_plan",
	View: ViewExplainPlan,
	SQL:  `SELECT SYSTEM$EXPLAIN_PLAN_JSON(?) AS plan`,
}

// QueryPrivilegedRoles lists active grants of high-risk privileges.
var QueryPrivilegedRoles = Query{
	Name: "privileged_roles",
	View: ViewGrantsToRoles,
	SQL: `SELECT grantee_name AS role_name,
       privilege,
       granted_on,
       name AS object_name
FROM SNOWFLAKE.ACCOUNT_USAGE.GRANTS_TO_ROLES
WHERE deleted_on IS NULL
  AND (privilege IN ('OWNERSHIP', 'MANAGE GRANTS', 'CREATE USER', 'CREATE ROLE', 'CREATE DATABASE', 'CREATE WAREHOUSE')
       OR (granted_on = 'ROLE' AND name IN ('ACCOUNTADMIN', 'SECURITYADMIN', 'SYSADMIN', 'USERADMIN')))
ORDER BY 1, 2, 3, 4`,
}

// QueryInactiveUsers lists enabled users without a recent successful login.
// Args: inactive days.
var QueryInactiveUsers = Query{
	Name: "inactive_users",
	View: ViewLoginHistory,
	SQL: `WITH logins AS (
    SELECT user_name, MAX(event_timestamp) AS last_login
    FROM SNOWFLAKE.ACCOUNT_USAGE.LOGIN_HISTORY
    WHERE is_success = 'YES'
    GROUP BY 1
)
SELECT u.name AS user_name,
       l.last_login,
       DATEDIFF(day, COALESCE(l.last_login, u.created_on), CURRENT_TIMESTAMP()) AS days_inactive
FROM SNOWFLAKE.ACCOUNT_USAGE.USERS u
LEFT JOIN logins l ON l.user_name = u.name
WHERE u.deleted_on IS NULL
  AND u.disabled = FALSE
  AND DATEDIFF(day, COALESCE(l.last_login, u.created_on), CURRENT_TIMESTAMP()) >= ?
ORDER BY 3 DESC, 1`,
	Numeric: []string{"DAYS_INACTIVE"},
}

// QueryRoleUsage reports query counts per role, including unused roles.
// Args: days.
var QueryRoleUsage = Query{
	Name: "role_usage",
	View: ViewRoles,
	SQL: `WITH usage AS (
    SELECT role_name, COUNT(*) AS query_count, MAX(start_time) AS last_used
    FROM SNOWFLAKE.ACCOUNT_USAGE.QUERY_HISTORY
    WHERE start_time >= DATEADD(day, -1 * ?, CURRENT_TIMESTAMP())
    GROUP BY 1
),
members AS (
    SELECT role AS role_name, COUNT(DISTINCT grantee_name) AS user_count
    FROM SNOWFLAKE.ACCOUNT_USAGE.GRANTS_TO_USERS
    WHERE deleted_on IS NULL
    GROUP BY 1
)
SELECT r.name AS role_name,
       COALESCE(u.query_count, 0) AS query_count,
       u.last_used,
       COALESCE(m.user_count, 0) AS user_count
FROM SNOWFLAKE.ACCOUNT_USAGE.ROLES r
LEFT JOIN usage u ON u.role_name = r.name
LEFT JOIN members m ON m.role_name = r.name
WHERE r.deleted_on IS NULL
ORDER BY 1`,
	Numeric: []string{"QUERY_COUNT", "USER_COUNT"},
}

// Catalog lists every fixed query
var Catalog = []Query{
	QueryWarehouseLoad,
	QueryWarehouseActivity,
	QueryQueryGaps,
	QueryScalingProfile,
	QueryCreditHistory,
	QueryDailyCredits,
	QueryWarehouseCredits,
	QueryElapsedBy(subjectColumns["user"]),
	QueryElapsedBy(subjectColumns["role"]),
	QueryElapsedBy(subjectColumns["database"]),
	QueryTableScans,
	QueryTableColumns,
	QueryTableSize,
	QuerySlowQueries,
	QueryQueryInfo,
	QueryExplainPlan,
	QueryPrivilegedRoles,
	QueryInactiveUsers,
	QueryRoleUsage,
	QueryWarehouseUsage,
	taggedResourceQueries["warehouse"],
	taggedResourceQueries["database"],
	taggedResourceQueries["table"],
}
