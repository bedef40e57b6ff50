package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"snowops/adapters/snowflake"
	"snowops/core/metadata"
	"snowops/core/output"
	"snowops/core/types"
	"snowops/core/ui"
	"snowops/internal/config"
	"snowops/internal/errors"
	"snowops/internal/logging"
	"snowops/internal/metrics"
)

// invocation carries the state of one command run
type invocation struct {
	name    string
	ctx     context.Context
	cfg     *config.Config
	logger  *zap.Logger
	out     *ui.Writer
	in      io.Reader
	metrics *metrics.Recorder
	started time.Time
}

func newInvocation(cmd *cobra.Command) *invocation {
	cfg := config.Get()
	out := ui.NewWriter(cmd.OutOrStdout(), !cfg.Output.Color)
	if verbose {
		out.SetVerbosity(2)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return &invocation{
		name:    cmd.Name(),
		ctx:     ctx,
		cfg:     cfg,
		logger:  logging.ForRun(cmd.Name()),
		out:     out,
		in:      cmd.InOrStdin(),
		metrics: metrics.NewRecorder(),
		started: time.Now(),
	}
}

// connect opens the one session of this run
func (inv *invocation) connect(opts ...snowflake.Option) (*snowflake.Session, error) {
	opts = append([]snowflake.Option{snowflake.WithLogger(inv.logger)}, opts...)
	return snowflake.Open(inv.ctx, inv.cfg.Connection, opts...)
}

func (inv *invocation) reader(s *snowflake.Session) *metadata.Reader {
	return metadata.NewReader(s, inv.logger)
}

func (inv *invocation) filter() metadata.Filter {
	return metadata.Filter{
		Days:      inv.cfg.Analysis.Days,
		Warehouse: strings.ToUpper(strings.TrimSpace(warehouse)),
	}
}

func (inv *invocation) pricing() types.Pricing {
	return types.Pricing{
		CreditPrice: inv.cfg.Pricing.CreditPrice,
		Currency:    inv.cfg.Pricing.Currency,
	}
}

// inventory reads live warehouses, narrowed to --warehouse when set.
func (inv *invocation) inventory(s *snowflake.Session) ([]types.Warehouse, error) {
	all, err := snowflake.NewPlatform(s, inv.logger).Warehouses(inv.ctx)
	if err != nil {
		return nil, err
	}
	name := inv.filter().Warehouse
	if name == "" {
		return all, nil
	}
	var out []types.Warehouse
	for _, wh := range all {
		if wh.Name == name {
			out = append(out, wh)
		}
	}
	return out, nil
}

// emit prints tables and exports them when --output is set.
func (inv *invocation) emit(tables ...*output.Table) error {
	for _, t := range tables {
		inv.out.Table(t)
		inv.out.Println("")
	}
	if outputFile == "" {
		return nil
	}
	files, err := output.Export(outputFile, tables...)
	if err != nil {
		return errors.Wrap(errors.TypeConfig, "export failed", err)
	}
	for _, f := range files {
		inv.out.Success("Exported %s", f)
	}
	return nil
}

// confirm asks before a change; only "yes" is accepted.
func (inv *invocation) confirm(format string, args ...interface{}) bool {
	inv.out.Println("")
	inv.out.Print(format+" Only 'yes' will be accepted: ", args...)
	answer, _ := bufio.NewReader(inv.in).ReadString('\n')
	return strings.TrimSpace(answer) == "yes"
}

// noData reports an empty window for this report.
func (inv *invocation) noData() error {
	return errors.DataUnavailable(inv.name, inv.cfg.Analysis.Days)
}

// finish records the run and writes the metrics textfile when requested.
func (inv *invocation) finish(err error) error {
	elapsed := time.Since(inv.started)
	inv.metrics.ObserveCommand(inv.name, elapsed)

	if err != nil && !errors.IsType(err, errors.TypeDataUnavailable) {
		inv.logger.Error("command failed", zap.Duration("elapsed", elapsed), zap.Error(err))
	} else {
		inv.logger.Info("command complete", zap.Duration("elapsed", elapsed))
	}

	if metricsFile != "" {
		if werr := inv.metrics.WriteTextfile(metricsFile); werr != nil {
			inv.logger.Warn("failed to write metrics", zap.String("path", metricsFile), zap.Error(werr))
		}
	}
	return err
}

// run wraps a report body with session setup and teardown.
func run(body func(inv *invocation, s *snowflake.Session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		inv := newInvocation(cmd)
		s, err := inv.connect()
		if err != nil {
			return inv.finish(err)
		}
		defer s.Close()
		return inv.finish(body(inv, s))
	}
}

func money(p types.Pricing, amount decimal.Decimal) string {
	return p.Format(amount)
}

func num(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func timestamp(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func since(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < 48*time.Hour {
		return fmt.Sprintf("%.0fh", d.Hours())
	}
	return fmt.Sprintf("%.0fd", d.Hours()/24)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
