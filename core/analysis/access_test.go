package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowops/core/metadata"
)

func TestAuditAccess(t *testing.T) {
	grants := []metadata.PrivilegeGrant{
		{Role: "ANALYST", Privilege: "USAGE", GrantedOn: "ROLE", Object: "SYSADMIN"},
		{Role: "LOADER", Privilege: "CREATE WAREHOUSE", GrantedOn: "ACCOUNT", Object: "ACME"},
		{Role: "ACCOUNTADMIN", Privilege: "MANAGE GRANTS", GrantedOn: "ACCOUNT", Object: "ACME"},
		{Role: "ops", Privilege: "manage grants", GrantedOn: "ACCOUNT", Object: "ACME"},
		{Role: "OPS", Privilege: "OWNERSHIP", GrantedOn: "DATABASE", Object: "SALES"},
		{Role: "READER", Privilege: "SELECT", GrantedOn: "TABLE", Object: "SALES.PUBLIC.ORDERS"},
	}
	for _, db := range []string{"A", "B", "C", "D", "E", "F"} {
		grants = append(grants, metadata.PrivilegeGrant{Role: "BUILDER", Privilege: "OWNERSHIP", GrantedOn: "DATABASE", Object: db})
	}

	inactive := []metadata.InactiveUser{{User: "BOB", DaysInactive: 120}}
	roles := []metadata.RoleUsage{
		{Role: "PUBLIC"},
		{Role: "STALE"},
		{Role: "USED", QueryCount: 5},
		{Role: "AGED"},
	}

	report := AuditAccess(grants, inactive, roles)
	assert.False(t, report.Empty())

	require.Len(t, report.PrivilegedRoles, 3)
	ops := report.PrivilegedRoles[0]
	assert.Equal(t, "OPS", ops.Role)
	assert.Equal(t, SeverityCritical, ops.Risk)
	assert.Equal(t, []string{"MANAGE GRANTS", "OWNERSHIP"}, ops.Privileges)

	assert.Equal(t, "ANALYST", report.PrivilegedRoles[1].Role)
	assert.Equal(t, []string{"SYSADMIN"}, report.PrivilegedRoles[1].Privileges)

	builder := report.PrivilegedRoles[2]
	assert.Equal(t, "BUILDER", builder.Role)
	assert.Equal(t, SeverityHigh, builder.Risk)
	assert.Equal(t, 6, builder.High)

	assert.Equal(t, inactive, report.InactiveUsers)

	require.Len(t, report.UnusedRoles, 2)
	assert.Equal(t, "AGED", report.UnusedRoles[0].Role)
	assert.Equal(t, "STALE", report.UnusedRoles[1].Role)
}

func TestAuditAccessEmpty(t *testing.T) {
	assert.True(t, AuditAccess(nil, nil, nil).Empty())
}
