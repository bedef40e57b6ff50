package snowflake

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/snowflakedb/gosnowflake"

	"snowops/internal/errors"
)

// platform error numbers
const (
	errObjectNotAuthorized  = 2003
	errInsufficientPrivs    = 3001
	errIncorrectCredentials = 390100
	errUserLocked           = 390101
	errJWTInvalid           = 390144
)

// RemediationGrant is the grant that unlocks the account usage views.
func RemediationGrant(role string) string {
	if role == "" {
		role = "<role>"
	}
	return fmt.Sprintf("GRANT IMPORTED PRIVILEGES ON DATABASE SNOWFLAKE TO ROLE %s", role)
}

func classifyAuthError(err error) error {
	hint := "authentication failed"

	var sfErr *gosnowflake.SnowflakeError
	if stderrors.As(err, &sfErr) {
		switch {
		case sfErr.Number == errIncorrectCredentials:
			hint = "incorrect username or password"
		case sfErr.Number == errUserLocked:
			hint = "user is temporarily locked"
		case sfErr.Number == errJWTInvalid:
			hint = "key-pair JWT rejected: key expired, not registered for the user, or wrong account"
		case strings.Contains(strings.ToUpper(sfErr.Message), "MFA"):
			hint = "multi-factor authentication required or not completed"
		}
	}
	return errors.Authentication(hint, err)
}

func classifyQueryError(err error, role string) error {
	var sfErr *gosnowflake.SnowflakeError
	if stderrors.As(err, &sfErr) {
		switch sfErr.Number {
		case errObjectNotAuthorized, errInsufficientPrivs:
			return errors.Permission("missing grant on account usage view", RemediationGrant(role), err)
		}
	}
	return errors.Wrap(errors.TypeQuery, "query failed", err)
}

// ddlObject matches the verb, kind and quoted name that open a rendered DDL
// statement.
var ddlObject = regexp.MustCompile(`^(CREATE|ALTER) (WAREHOUSE|RESOURCE MONITOR) ("(?:[^"]|"")+")`)

// RemediationDDL is the grant that lets role run statement.
func RemediationDDL(statement, role string) string {
	if role == "" {
		role = "<role>"
	}
	if strings.Contains(statement, " SET TAG ") {
		return fmt.Sprintf("GRANT APPLY TAG ON ACCOUNT TO ROLE %s", role)
	}
	m := ddlObject.FindStringSubmatch(strings.TrimSpace(statement))
	if m == nil {
		return fmt.Sprintf("grant role %s the privileges the statement needs, or run it as ACCOUNTADMIN", role)
	}
	verb, kind, name := m[1], m[2], m[3]
	switch {
	case kind == "WAREHOUSE" && verb == "CREATE":
		return fmt.Sprintf("GRANT CREATE WAREHOUSE ON ACCOUNT TO ROLE %s", role)
	case kind == "WAREHOUSE":
		return fmt.Sprintf("GRANT MODIFY ON WAREHOUSE %s TO ROLE %s", name, role)
	case verb == "CREATE":
		return "resource monitors can only be created by ACCOUNTADMIN; run the apply with that role"
	default:
		return fmt.Sprintf("GRANT MODIFY ON RESOURCE MONITOR %s TO ROLE %s", name, role)
	}
}

func classifyExecError(err error, statement, role string) error {
	var sfErr *gosnowflake.SnowflakeError
	if stderrors.As(err, &sfErr) {
		switch sfErr.Number {
		case errObjectNotAuthorized, errInsufficientPrivs:
			return errors.Permission("role cannot run DDL statement", RemediationDDL(statement, role), err)
		}
	}
	return errors.Wrap(errors.TypeQuery, "statement failed", err)
}
