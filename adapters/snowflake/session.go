// Package snowflake connects to the warehouse platform, runs catalog queries
// and implements the live side of reconciliation.
package snowflake

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"fmt"
	"os"
	"sync"

	"github.com/snowflakedb/gosnowflake"
	"github.com/youmark/pkcs8"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"snowops/core/record"
	"snowops/internal/config"
	"snowops/internal/errors"
	"snowops/internal/logging"
)

// Session is one live connection. Acquire it once per command and defer Close.
type Session struct {
	db      *sql.DB
	logger  *zap.Logger
	limiter *rate.Limiter
	role    string
	account string

	mu         sync.Mutex
	closed     bool
	queryCount int64
	errorCount int64
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRateLimit paces statements to rps per second with a burst of one.
func WithRateLimit(rps float64) Option {
	return func(s *Session) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRole records the active role for permission remediation messages.
func WithRole(role string) Option {
	return func(s *Session) {
		s.role = role
	}
}

// NewSession wraps an already-open database handle.
func NewSession(db *sql.DB, opts ...Option) *Session {
	s := &Session{
		db:      db,
		logger:  logging.Nop(),
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open validates the connection settings, authenticates and pings.
// Configuration problems fail before any network call.
func Open(ctx context.Context, conn config.Connection, opts ...Option) (*Session, error) {
	if err := conn.Validate(); err != nil {
		return nil, err
	}

	cfg, err := driverConfig(conn)
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(gosnowflake.NewConnector(gosnowflake.SnowflakeDriver{}, *cfg))
	db.SetMaxOpenConns(1)

	s := NewSession(db, append([]Option{WithRole(conn.Role)}, opts...)...)
	s.account = conn.Account

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		s.logger.Error("authentication failed",
			zap.String("account", conn.Account),
			zap.String("user", conn.User),
			zap.Error(err))
		return nil, classifyAuthError(err)
	}

	s.logger.Info("connected",
		zap.String("account", conn.Account),
		zap.String("user", conn.User),
		zap.String("role", conn.Role))
	return s, nil
}

func driverConfig(conn config.Connection) (*gosnowflake.Config, error) {
	mode, err := conn.AuthMode()
	if err != nil {
		return nil, err
	}

	tag := "snowops"
	cfg := &gosnowflake.Config{
		Account:     conn.Account,
		User:        conn.User,
		Role:        conn.Role,
		Warehouse:   conn.Warehouse,
		Database:    conn.Database,
		Schema:      conn.Schema,
		Application: "snowops",
		Params:      map[string]*string{"query_tag": &tag},
	}

	switch mode {
	case config.AuthKeyPair:
		key, err := loadPrivateKey(conn.PrivateKeyPath, conn.PrivateKeyPassphrase)
		if err != nil {
			return nil, err
		}
		cfg.Authenticator = gosnowflake.AuthTypeJwt
		cfg.PrivateKey = key
	case config.AuthPassword:
		cfg.Authenticator = gosnowflake.AuthTypeSnowflake
		cfg.Password = conn.Password
	case config.AuthBrowser:
		cfg.Authenticator = gosnowflake.AuthTypeExternalBrowser
	}
	return cfg, nil
}

func loadPrivateKey(path, passphrase string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.TypeConfig, err, "read private key %s", path)
	}
	return parsePrivateKey(data, passphrase)
}

func parsePrivateKey(data []byte, passphrase string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.Config("private key is not PEM encoded")
	}

	switch block.Type {
	case "ENCRYPTED PRIVATE KEY":
		if passphrase == "" {
			return nil, errors.Config("private key is encrypted but no passphrase is set")
		}
		key, err := pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes, []byte(passphrase))
		if err != nil {
			return nil, errors.Authentication("decrypt private key (wrong passphrase?)", err)
		}
		return key, nil
	case "PRIVATE KEY":
		key, err := pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(errors.TypeConfig, "parse PKCS#8 private key", err)
		}
		return key, nil
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(errors.TypeConfig, "parse PKCS#1 private key", err)
		}
		return key, nil
	default:
		return nil, errors.Configf("unsupported private key block %q, expected PKCS#8 or PKCS#1", block.Type)
	}
}

// Role returns the active role, if configured
func (s *Session) Role() string {
	return s.role
}

// Query runs a read statement and normalizes its result.
func (s *Session) Query(ctx context.Context, statement string, numeric []string, args ...interface{}) (*record.Result, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, statement, args...)
	if err != nil {
		s.countError()
		return nil, classifyQueryError(err, s.role)
	}
	defer rows.Close()

	result, err := record.FromRows(rows, numeric...)
	if err != nil {
		s.countError()
		return nil, classifyQueryError(err, s.role)
	}

	s.logger.Debug("query complete", zap.Int("rows", result.Len()))
	return result, nil
}

// Exec runs a mutating statement.
func (s *Session) Exec(ctx context.Context, statement string, args ...interface{}) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, statement, args...); err != nil {
		s.countError()
		return classifyExecError(err, statement, s.role)
	}
	s.logger.Debug("statement executed", logging.Statement(statement))
	return nil
}

func (s *Session) wait(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.queryCount++
	s.mu.Unlock()

	if closed {
		return errors.Internal("session is closed", nil)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func (s *Session) countError() {
	s.mu.Lock()
	s.errorCount++
	s.mu.Unlock()
}

// Close releases the connection. Calling it more than once is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.logger.Info("closing session",
		zap.Int64("total_queries", s.queryCount),
		zap.Int64("total_errors", s.errorCount))
	return s.db.Close()
}
