package snowflake

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/snowflakedb/gosnowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youmark/pkcs8"

	"snowops/internal/config"
	"snowops/internal/errors"
)

func newMockSession(t *testing.T, opts ...Option) (*Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewSession(db, opts...), mock
}

func TestOpenRejectsAmbiguousAuthBeforeConnecting(t *testing.T) {
	_, err := Open(context.Background(), config.Connection{
		Account:    "xy12345",
		User:       "ops",
		Password:   "secret",
		BrowserSSO: true,
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeConfig))
	assert.Equal(t, 2, errors.ExitCode(err))
}

func TestOpenRejectsMissingAuth(t *testing.T) {
	_, err := Open(context.Background(), config.Connection{Account: "xy12345", User: "ops"})
	assert.True(t, errors.IsType(err, errors.TypeConfig))
}

func TestQueryNormalizesResult(t *testing.T) {
	s, mock := newMockSession(t)
	defer s.Close()

	mock.ExpectQuery("SELECT warehouse_name").
		WithArgs("ANALYTICS_WH").
		WillReturnRows(sqlmock.NewRows([]string{"WAREHOUSE_NAME", "CREDITS"}).AddRow("ANALYTICS_WH", "12.50"))

	result, err := s.Query(context.Background(), "SELECT warehouse_name, credits FROM x WHERE w = ?", []string{"CREDITS"}, "ANALYTICS_WH")
	require.NoError(t, err)
	require.Equal(t, 1, result.Len())
	assert.Equal(t, 12.5, result.Records[0]["CREDITS"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryPermissionErrorCarriesGrant(t *testing.T) {
	s, mock := newMockSession(t, WithRole("ANALYST"))
	defer s.Close()

	mock.ExpectQuery("SELECT").WillReturnError(&gosnowflake.SnowflakeError{
		Number:  3001,
		Message: "Insufficient privileges to operate on database 'SNOWFLAKE'",
	})

	_, err := s.Query(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypePermission))
	assert.Contains(t, err.Error(), "GRANT IMPORTED PRIVILEGES ON DATABASE SNOWFLAKE TO ROLE ANALYST")
	assert.Equal(t, 4, errors.ExitCode(err))
}

func TestQueryOtherErrorsAreQueryErrors(t *testing.T) {
	s, mock := newMockSession(t)
	defer s.Close()

	mock.ExpectQuery("SELECT").WillReturnError(&gosnowflake.SnowflakeError{Number: 1003, Message: "syntax error"})

	_, err := s.Query(context.Background(), "SELECT 1", nil)
	assert.True(t, errors.IsType(err, errors.TypeQuery))
	assert.Equal(t, 1, errors.ExitCode(err))
}

func TestExec(t *testing.T) {
	s, mock := newMockSession(t, WithRateLimit(100))
	defer s.Close()

	mock.ExpectExec(`ALTER WAREHOUSE "ANALYTICS_WH"`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.Exec(context.Background(), `ALTER WAREHOUSE "ANALYTICS_WH" SET WAREHOUSE_SIZE = 'LARGE'`))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecPermissionErrorNamesDDLGrant(t *testing.T) {
	s, mock := newMockSession(t, WithRole("DEPLOYER"))
	defer s.Close()

	denied := &gosnowflake.SnowflakeError{Number: 3001, Message: "Insufficient privileges to operate on warehouse 'ANALYTICS_WH'"}
	cases := []struct {
		statement string
		grant     string
	}{
		{`CREATE WAREHOUSE "ETL_WH" WITH WAREHOUSE_SIZE = 'XSMALL' INITIALLY_SUSPENDED = TRUE`, "GRANT CREATE WAREHOUSE ON ACCOUNT TO ROLE DEPLOYER"},
		{`ALTER WAREHOUSE "ANALYTICS_WH" SET WAREHOUSE_SIZE = 'LARGE'`, `GRANT MODIFY ON WAREHOUSE "ANALYTICS_WH" TO ROLE DEPLOYER`},
		{`ALTER WAREHOUSE "ANALYTICS_WH" SET TAG "GOVERNANCE"."TAGS"."OWNER" = 'bi'`, "GRANT APPLY TAG ON ACCOUNT TO ROLE DEPLOYER"},
		{`CREATE RESOURCE MONITOR "ETL_RM" WITH CREDIT_QUOTA = 10`, "ACCOUNTADMIN"},
		{`ALTER RESOURCE MONITOR "ETL_RM" NOTRIGGERS`, `GRANT MODIFY ON RESOURCE MONITOR "ETL_RM" TO ROLE DEPLOYER`},
	}
	for _, tc := range cases {
		mock.ExpectExec(regexp.QuoteMeta(tc.statement)).WillReturnError(denied)

		err := s.Exec(context.Background(), tc.statement)
		require.Error(t, err, tc.statement)
		assert.True(t, errors.IsType(err, errors.TypePermission), tc.statement)
		assert.Contains(t, err.Error(), tc.grant, tc.statement)
		assert.NotContains(t, err.Error(), "IMPORTED PRIVILEGES", tc.statement)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseIsIdempotent(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectClose()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err := s.Query(context.Background(), "SELECT 1", nil)
	assert.Error(t, err)
}

func TestClassifyAuthError(t *testing.T) {
	err := classifyAuthError(&gosnowflake.SnowflakeError{Number: 390100, Message: "Incorrect username or password was specified."})
	assert.True(t, errors.IsType(err, errors.TypeAuthentication))
	assert.Contains(t, err.Error(), "incorrect username or password")
	assert.Equal(t, 3, errors.ExitCode(err))

	err = classifyAuthError(&gosnowflake.SnowflakeError{Number: 390144, Message: "JWT token is invalid."})
	assert.Contains(t, err.Error(), "key-pair JWT rejected")
}

func writeKey(t *testing.T, block *pem.Block) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rsa_key.p8")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path
}

func TestLoadPrivateKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	plain := writeKey(t, &pem.Block{Type: "PRIVATE KEY", Bytes: der})

	got, err := loadPrivateKey(plain, "")
	require.NoError(t, err)
	assert.True(t, key.Equal(got))

	encDer, err := pkcs8.MarshalPrivateKey(key, []byte("hunter2"), nil)
	require.NoError(t, err)
	encrypted := writeKey(t, &pem.Block{Type: "ENCRYPTED PRIVATE KEY", Bytes: encDer})

	got, err = loadPrivateKey(encrypted, "hunter2")
	require.NoError(t, err)
	assert.True(t, key.Equal(got))

	_, err = loadPrivateKey(encrypted, "")
	assert.True(t, errors.IsType(err, errors.TypeConfig))

	_, err = loadPrivateKey(encrypted, "wrong")
	assert.True(t, errors.IsType(err, errors.TypeAuthentication))

	legacy := writeKey(t, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	got, err = loadPrivateKey(legacy, "")
	require.NoError(t, err)
	assert.True(t, key.Equal(got))
}

func TestLoadPrivateKeyErrors(t *testing.T) {
	_, err := loadPrivateKey(filepath.Join(t.TempDir(), "absent.p8"), "")
	assert.True(t, errors.IsType(err, errors.TypeConfig))

	_, err = parsePrivateKey([]byte("not pem"), "")
	assert.True(t, errors.IsType(err, errors.TypeConfig))

	_, err = parsePrivateKey(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: []byte{1}}), "")
	assert.True(t, errors.IsType(err, errors.TypeConfig))

	_, err = parsePrivateKey(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: []byte{1}}), "")
	assert.True(t, errors.IsType(err, errors.TypeConfig))
	assert.Contains(t, err.Error(), "unsupported private key block")
}
