package analysis

import (
	"sort"
	"strings"

	"snowops/core/metadata"
)

var builtinRoles = map[string]bool{
	"ACCOUNTADMIN":  true,
	"SECURITYADMIN": true,
	"SYSADMIN":      true,
	"USERADMIN":     true,
	"ORGADMIN":      true,
	"PUBLIC":        true,
}

// RoleRisk summarizes the high-risk grants held by one role.
type RoleRisk struct {
	Role       string
	Critical   int
	High       int
	Privileges []string
	Risk       Severity
}

// AccessReport is the result of AuditAccess.
type AccessReport struct {
	PrivilegedRoles []RoleRisk
	InactiveUsers   []metadata.InactiveUser
	UnusedRoles     []metadata.RoleUsage
}

// Empty reports whether the audit found nothing
func (r AccessReport) Empty() bool {
	return len(r.PrivilegedRoles) == 0 && len(r.InactiveUsers) == 0 && len(r.UnusedRoles) == 0
}

// grantRisk rates one grant; administrative role grants and grant or user
// management are critical.
func grantRisk(g metadata.PrivilegeGrant) Severity {
	privilege := upper(g.Privilege)
	on := upper(g.GrantedOn)
	switch {
	case on == "ROLE" && builtinRoles[upper(g.Object)] && upper(g.Object) != "PUBLIC":
		switch upper(g.Object) {
		case "ACCOUNTADMIN", "SECURITYADMIN", "SYSADMIN", "ORGADMIN":
			return SeverityCritical
		}
		return SeverityHigh
	case privilege == "MANAGE GRANTS", privilege == "CREATE USER", privilege == "CREATE ROLE":
		return SeverityCritical
	case privilege == "OWNERSHIP" && on == "DATABASE":
		return SeverityHigh
	case privilege == "CREATE DATABASE", privilege == "CREATE WAREHOUSE":
		return SeverityHigh
	default:
		return SeverityNormal
	}
}

// AuditAccess flags roles holding critical privileges (or more than five
// high-risk ones), users without a recent login and custom roles unused in
// the window.
func AuditAccess(grants []metadata.PrivilegeGrant, inactive []metadata.InactiveUser, roles []metadata.RoleUsage) AccessReport {
	risks := make(map[string]*RoleRisk)
	for _, g := range grants {
		role := upper(g.Role)
		if role == "ACCOUNTADMIN" {
			continue
		}
		sev := grantRisk(g)
		if sev != SeverityCritical && sev != SeverityHigh {
			continue
		}

		r, ok := risks[role]
		if !ok {
			r = &RoleRisk{Role: role}
			risks[role] = r
		}
		label := upper(g.Privilege)
		if upper(g.GrantedOn) == "ROLE" {
			label = upper(g.Object)
		}
		if sev == SeverityCritical {
			r.Critical++
		} else {
			r.High++
		}
		r.Privileges = appendUnique(r.Privileges, label)
	}

	var report AccessReport
	for _, name := range sortedKeys(risks) {
		r := risks[name]
		if r.Critical == 0 && r.High <= 5 {
			continue
		}
		r.Risk = SeverityHigh
		if r.Critical > 0 {
			r.Risk = SeverityCritical
		}
		sort.Strings(r.Privileges)
		report.PrivilegedRoles = append(report.PrivilegedRoles, *r)
	}
	sort.SliceStable(report.PrivilegedRoles, func(i, j int) bool {
		a, b := report.PrivilegedRoles[i], report.PrivilegedRoles[j]
		if a.Critical != b.Critical {
			return a.Critical > b.Critical
		}
		return a.High > b.High
	})

	report.InactiveUsers = append(report.InactiveUsers, inactive...)

	for _, role := range roles {
		if role.QueryCount == 0 && !builtinRoles[upper(role.Role)] {
			report.UnusedRoles = append(report.UnusedRoles, role)
		}
	}
	sort.SliceStable(report.UnusedRoles, func(i, j int) bool {
		return strings.Compare(report.UnusedRoles[i].Role, report.UnusedRoles[j].Role) < 0
	})
	return report
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
