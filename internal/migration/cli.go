package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/BaSui01/loanflow/internal/database"
)

// =============================================================================
// 🖨️ 终端输出
// =============================================================================

// CLI 执行迁移并报告结果。
// 每次变更都会对比前后状态，逐条列出被应用或回滚的迁移及其涉及的业务表，
// 便于运维确认 loan_types、customers 等表是否就绪。
type CLI struct {
	migrator Migrator
	out      io.Writer
}

// NewCLI 创建 CLI，默认输出到 stdout
func NewCLI(migrator Migrator) *CLI {
	return &CLI{migrator: migrator, out: os.Stdout}
}

// SetOutput 替换输出目标
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// RunUp 应用全部未执行的迁移
func (c *CLI) RunUp(ctx context.Context) error {
	return c.change(ctx, "migrate up", c.migrator.Up)
}

// RunDown 回滚最近一个迁移
func (c *CLI) RunDown(ctx context.Context) error {
	return c.change(ctx, "rollback", c.migrator.Down)
}

// RunDownAll 回滚全部迁移（会删除全部业务表）
func (c *CLI) RunDownAll(ctx context.Context) error {
	return c.change(ctx, "reset", c.migrator.DownAll)
}

// RunSteps n > 0 前进，n < 0 回滚
func (c *CLI) RunSteps(ctx context.Context, n int) error {
	return c.change(ctx, fmt.Sprintf("steps %d", n), func(ctx context.Context) error {
		return c.migrator.Steps(ctx, n)
	})
}

// RunGoto 迁移到指定版本
func (c *CLI) RunGoto(ctx context.Context, version uint) error {
	return c.change(ctx, fmt.Sprintf("goto %d", version), func(ctx context.Context) error {
		return c.migrator.Goto(ctx, version)
	})
}

// RunForce 只改写版本记录，不执行 SQL
func (c *CLI) RunForce(ctx context.Context, version int) error {
	if err := c.migrator.Force(ctx, version); err != nil {
		return fmt.Errorf("force %d: %w", version, err)
	}
	fmt.Fprintf(c.out, "Version record set to %d; no SQL was executed.\n", version)
	return c.printVersion(ctx)
}

// RunVersion 输出当前 Schema 版本
func (c *CLI) RunVersion(ctx context.Context) error {
	return c.printVersion(ctx)
}

// RunStatus 逐条列出迁移状态
func (c *CLI) RunStatus(ctx context.Context) error {
	statuses, err := c.migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("read migration status: %w", err)
	}
	if len(statuses) == 0 {
		fmt.Fprintln(c.out, "No migrations found.")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tSTATE\tTABLES")
	applied := 0
	for _, s := range statuses {
		if s.Applied {
			applied++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", migrationID(s), stateOf(s), tableList(s.Tables))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n%d of %d migrations applied", applied, len(statuses))
	if pending := len(statuses) - applied; pending > 0 {
		fmt.Fprintf(c.out, ", %d pending", pending)
	}
	fmt.Fprintln(c.out)
	return nil
}

// RunInfo 输出数据库类型、当前版本与待执行数量
func (c *CLI) RunInfo(ctx context.Context) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return fmt.Errorf("read migration info: %w", err)
	}

	fmt.Fprintf(c.out, "Driver:   %s\n", c.driverName())
	fmt.Fprintf(c.out, "Version:  %d", info.CurrentVersion)
	if info.Dirty {
		fmt.Fprint(c.out, " (dirty, fix the schema and run force)")
	}
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "Applied:  %d/%d\n", info.AppliedMigrations, info.TotalMigrations)
	fmt.Fprintf(c.out, "Pending:  %d\n", info.PendingMigrations)
	return nil
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// change 执行一次会改变版本的操作，并报告前后差异
func (c *CLI) change(ctx context.Context, label string, op func(context.Context) error) error {
	before, err := c.migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("read migration status: %w", err)
	}
	if err := op(ctx); err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	after, err := c.migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("read migration status: %w", err)
	}

	applied, reverted := diffStatus(before, after)
	for _, s := range applied {
		fmt.Fprintf(c.out, "applied   %s  %s\n", migrationID(s), tableList(s.Tables))
	}
	// 回滚按版本倒序执行，输出顺序与之一致
	for i := len(reverted) - 1; i >= 0; i-- {
		fmt.Fprintf(c.out, "reverted  %s  %s\n", migrationID(reverted[i]), tableList(reverted[i].Tables))
	}
	if len(applied) == 0 && len(reverted) == 0 {
		fmt.Fprintln(c.out, "Schema unchanged.")
	}
	return c.printVersion(ctx)
}

// diffStatus 按版本对齐前后状态，返回新应用与被回滚的迁移
func diffStatus(before, after []MigrationStatus) (applied, reverted []MigrationStatus) {
	was := make(map[uint]bool, len(before))
	for _, s := range before {
		was[s.Version] = s.Applied
	}
	for _, s := range after {
		switch {
		case s.Applied && !was[s.Version]:
			applied = append(applied, s)
		case !s.Applied && was[s.Version]:
			reverted = append(reverted, s)
		}
	}
	return applied, reverted
}

func (c *CLI) printVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version == 0 {
		fmt.Fprintln(c.out, "No migrations applied yet.")
		return nil
	}

	name := ""
	if statuses, err := c.migrator.Status(ctx); err == nil {
		for _, s := range statuses {
			if s.Version == version {
				name = " " + migrationID(s)
			}
		}
	}
	fmt.Fprintf(c.out, "Schema version: %d%s", version, name)
	if dirty {
		fmt.Fprint(c.out, " (dirty)")
	}
	fmt.Fprintln(c.out)
	return nil
}

// migrationID 与文件名一致，例如 000001_init_schema
func migrationID(s MigrationStatus) string {
	return fmt.Sprintf("%06d_%s", s.Version, s.Name)
}

func stateOf(s MigrationStatus) string {
	switch {
	case s.Dirty:
		return "dirty"
	case s.Applied:
		return "applied"
	default:
		return "pending"
	}
}

func tableList(tables []string) string {
	if len(tables) == 0 {
		return "-"
	}
	return strings.Join(tables, ", ")
}

func (c *CLI) driverName() string {
	if d, ok := c.migrator.(interface{ Driver() database.Driver }); ok {
		return string(d.Driver())
	}
	return "unknown"
}
