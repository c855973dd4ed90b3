package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"TitanicEDA/src/config"
	"TitanicEDA/src/datasource/file"
	"TitanicEDA/src/impute"
	"TitanicEDA/src/processor"
	"TitanicEDA/src/report"
	"TitanicEDA/src/storage"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const jsonFile = "config.json"

// app 命令共用的配置和日志
type app struct {
	jsonFolder string
	verbose    bool

	cfg    *config.Config
	logger *storage.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "titanic",
		Short:        "泰坦尼克数据集探索分析",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.jsonFolder, "config", "./config", "配置文件目录")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "输出调试日志到标准错误")

	root.AddCommand(a.reportCmd(), a.mcarCmd(), a.scoreImputeCmd(), a.watchCmd())
	return root
}

func (a *app) init() error {
	cfg, err := config.LoadConfig(a.jsonFolder, jsonFile)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName, level, a.verbose)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

func sourceArg(args []string) string {
	if len(args) == 0 {
		return "train"
	}
	return args[0]
}

func (a *app) reportCmd() *cobra.Command {
	var schedule string
	cmd := &cobra.Command{
		Use:   "report [train|test]",
		Short: "生成缺失值, 频数, 相关矩阵图和清洗后的数据",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := sourceArg(args)
			runner := report.NewRunner(a.cfg, a.logger)
			if schedule == "" {
				schedule = a.cfg.Report.Schedule
			}
			if schedule == "" {
				sum, err := runner.Run(cmd.Context(), source)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), a.cfg.OutputDir, sum)
				return nil
			}
			return a.runScheduled(cmd.Context(), runner, source, schedule)
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", `cron 表达式, 例如 "@every 1h"; 为空时只运行一次`)
	return cmd
}

// runScheduled 按 cron 表达式重复生成报告, 直到收到退出信号
func (a *app) runScheduled(ctx context.Context, runner *report.Runner, source, cronSpec string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 设置定时任务
	c := cron.New()
	err := c.AddFunc(cronSpec, func() {
		a.logger.Info(fmt.Sprintf("开始定时生成报告(%v)...", cronSpec))
		if _, err := runner.Run(ctx, source); err != nil {
			a.logger.Error("生成报告失败: " + err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("创建定时任务失败: %w", err)
	}

	// 启动定时任务
	c.Start()
	defer c.Stop()

	a.logger.Info(fmt.Sprintf("报告定时任务已启动(%v), 按Ctrl+C退出", cronSpec))
	waitForShutdown(ctx, a.logger)
	return nil
}

func (a *app) mcarCmd() *cobra.Command {
	var (
		column string
		alpha  float64
	)
	cmd := &cobra.Command{
		Use:   "mcar [train|test]",
		Short: "检验单列的缺失是否与结果列无关",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if alpha <= 0 {
				alpha = a.cfg.Report.Alpha
			}
			ds := processor.New(a.cfg, a.logger)
			if _, err := ds.GetData(sourceArg(args)); err != nil {
				return err
			}
			res, resErr := ds.MCARResult(column)
			ok, err := ds.TestForMCAR(column, alpha)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "column: %s\n", column)
			if resErr != nil {
				fmt.Fprintf(out, "t: NaN\np: NaN (%v)\n", resErr)
			} else {
				fmt.Fprintf(out, "t: %.4f\ndof: %.0f\np: %.4f\n", res.T, res.DoF, res.P)
			}
			fmt.Fprintf(out, "mcar(alpha=%g): %t\n", alpha, ok)
			return nil
		},
	}
	cmd.Flags().StringVar(&column, "column", "", "要检验的列")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "显著性水平, 为 0 时使用配置值")
	cmd.MarkFlagRequired("column")
	return cmd
}

func (a *app) scoreImputeCmd() *cobra.Command {
	var (
		target  string
		columns []string
		scorer  string
		splits  int
		simple  []string
	)
	cmd := &cobra.Command{
		Use:   "score-impute [train|test]",
		Short: "交叉验证比较插补策略",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds := processor.New(a.cfg, a.logger)
			if _, err := ds.GetData(sourceArg(args)); err != nil {
				return err
			}
			if len(columns) == 0 {
				columns = []string{a.cfg.Target, "Pclass", "Age", "SibSp", "Parch", "Fare"}
			}
			estimators := []impute.Estimator{impute.NewRidge(1), impute.NewKNNRegressor(5)}
			df, err := ds.ScoreImputeStrategies(target, columns, estimators, scorer, splits, 0, simple)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "scorer: %s, outcome: %s, features: %s\n", scorer, columns[0], strings.Join(columns[1:], ","))
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "strategy\tmean\tstd")
			for _, name := range df.Names() {
				s := df.Col(name)
				fmt.Fprintf(w, "%s\t%.4f\t%.4f\n", name, s.Mean(), s.StdDev())
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&target, "target", "Age", "基线只使用该列不缺失的行")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "结果列和特征列, 第一个为结果列")
	cmd.Flags().StringVar(&scorer, "scorer", impute.ScoreR2, "r2 / neg_mean_squared_error / neg_mean_absolute_error / accuracy")
	cmd.Flags().IntVar(&splits, "splits", 0, "折数, 为 0 时使用配置值")
	cmd.Flags().StringSliceVar(&simple, "simple", nil, "单变量插补策略, 默认 mean,median")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [train|test]",
		Short: "数据文件更新后重新生成报告",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := config.NormalizeSource(sourceArg(args))
			path, ok := a.cfg.SourcePath(source)
			if !ok {
				return fmt.Errorf("未知的数据集 %q", source)
			}
			monitor, err := file.NewFileMonitor(time.Duration(a.cfg.Report.Debounce), path)
			if err != nil {
				return fmt.Errorf("监听 %s 失败: %w", path, err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go waitForShutdown(ctx, a.logger, cancel)

			runner := report.NewRunner(a.cfg, a.logger)
			run := func(name string) {
				a.logger.Info("数据文件更新, 重新生成报告", zap.String("file", name))
				if _, err := runner.Run(ctx, source); err != nil && !errors.Is(err, context.Canceled) {
					a.logger.Error("生成报告失败: " + err.Error())
				}
			}
			run(path)
			a.logger.Info(fmt.Sprintf("开始监听 %s, 按Ctrl+C退出", path))
			return monitor.Watch(ctx, run)
		},
	}
}

// waitForShutdown 阻塞到收到 SIGINT/SIGTERM 或 ctx 结束, 然后调用 cancel
func waitForShutdown(ctx context.Context, logger *storage.Logger, cancel ...context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal: " + sig.String() + ", shutting down...")
	case <-ctx.Done():
	}
	for _, c := range cancel {
		c()
	}
}

func printSummary(w io.Writer, dir string, sum *report.Summary) {
	fmt.Fprintf(w, "source: %s, rows: %d\n", sum.Source, sum.Rows)
	fmt.Fprintf(w, "missing columns: %s\n", strings.Join(sum.MissingColumns, ","))
	for _, m := range sum.MCAR {
		if m.P == nil {
			fmt.Fprintf(w, "  %s: p=NaN mcar=%t\n", m.Column, m.MCAR)
			continue
		}
		fmt.Fprintf(w, "  %s: p=%.4f mcar=%t\n", m.Column, *m.P, m.MCAR)
	}
	fmt.Fprintf(w, "wrote %d files to %s\n", len(sum.Files), dir)
}
