package cmd

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"snowops/adapters/snowflake"
	"snowops/core/analysis"
	"snowops/core/output"
)

var inactiveDays int

// auditCmd reviews role grants and account activity
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit privileged roles, inactive users and unused roles",
	Args:  cobra.NoArgs,
	RunE:  run(runAudit),
}

func init() {
	auditCmd.Flags().IntVar(&inactiveDays, "inactive-days", 0, "days without login before a user is inactive (default from config, 90)")
}

func runAudit(inv *invocation, s *snowflake.Session) error {
	inactiveAfter := inv.cfg.Analysis.InactiveDays
	if inactiveDays > 0 {
		inactiveAfter = inactiveDays
	}

	r := inv.reader(s)
	grants, err := r.PrivilegedRoles(inv.ctx)
	if err != nil {
		return err
	}
	users, err := r.InactiveUsers(inv.ctx, inactiveAfter)
	if err != nil {
		return err
	}
	roles, err := r.RoleUsage(inv.ctx, inv.cfg.Analysis.Days)
	if err != nil {
		return err
	}

	report := analysis.AuditAccess(grants, users, roles)
	if report.Empty() {
		inv.out.Success("No privileged roles, inactive users or unused roles found")
		return nil
	}

	privileged := output.NewTable("Privileged Roles", "Role", "Risk", "Critical", "High", "Privileges")
	for _, rr := range report.PrivilegedRoles {
		privileges := strings.Join(rr.Privileges, ", ")
		if !inv.cfg.Output.Detailed {
			privileges = truncate(privileges, 60)
		}
		privileged.AddRow(rr.Role, string(rr.Risk), strconv.Itoa(rr.Critical), strconv.Itoa(rr.High), privileges)
	}

	inactive := output.NewTable("Inactive Users", "User", "Last Login", "Days Inactive")
	for _, u := range report.InactiveUsers {
		inactive.AddRow(u.User, timestamp(u.LastLogin), strconv.Itoa(u.DaysInactive))
	}

	unused := output.NewTable("Unused Roles", "Role", "Users", "Last Used")
	for _, ru := range report.UnusedRoles {
		unused.AddRow(ru.Role, strconv.Itoa(ru.UserCount), timestamp(ru.LastUsed))
	}

	inv.metrics.Recommendations("audit", privileged.Len()+inactive.Len()+unused.Len(), 0)
	return inv.emit(privileged, inactive, unused)
}
