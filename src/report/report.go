// Package report 把数据集的一次完整探索分析写到输出目录
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"TitanicEDA/src/config"
	"TitanicEDA/src/plot"
	"TitanicEDA/src/processor"
	"TitanicEDA/src/stats"
	"TitanicEDA/src/storage"
	"TitanicEDA/src/utils"

	"github.com/go-gota/gota/series"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SummaryFile 报告摘要文件名
const SummaryFile = "summary.json"

// MCAR 单列的 MCAR 检验结果, 方差为零时 T 和 P 为空
type MCAR struct {
	Column string   `json:"column"`
	T      *float64 `json:"t"`
	P      *float64 `json:"p"`
	DoF    float64  `json:"dof"`
	MCAR   bool     `json:"mcar"`
}

// GroupMean 分组后结果列的均值
type GroupMean struct {
	Group string   `json:"group"`
	Mean  *float64 `json:"mean"`
	Count int      `json:"count"`
}

// Summary 写入 summary.json 的内容
type Summary struct {
	RunID          string                 `json:"run_id"`
	Source         string                 `json:"source"`
	Rows           int                    `json:"rows"`
	Columns        []string               `json:"columns"`
	MissingColumns []string               `json:"missing_columns"`
	MCAR           []MCAR                 `json:"mcar"`
	TargetMeans    map[string][]GroupMean `json:"target_means"`
	Files          []string               `json:"files"`
	GeneratedAt    time.Time              `json:"generated_at"`
	Elapsed        string                 `json:"elapsed"`
}

// Runner 串行执行报告, 定时任务和文件监听共用一个 Runner
type Runner struct {
	cfg    *config.Config
	logger *storage.Logger
	mu     sync.Mutex
}

func NewRunner(cfg *config.Config, logger *storage.Logger) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = storage.NewNopLogger()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Run 读取 source 并生成全部报告文件
// 参数:
//
//	ctx: 每个步骤之间检查, 取消后返回 ctx.Err()
//	source: 数据集标识(train / test)
//
// 返回值:
//
//	报告摘要; 每次运行使用新的数据集对象
func (r *Runner) Run(ctx context.Context, source string) (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t1 := time.Now()
	if err := r.logger.CheckRotate(r.cfg.LogMaxSize); err != nil {
		r.logger.Warning("日志轮转失败", zap.Error(err))
	}

	ds := processor.New(r.cfg, r.logger)
	df, err := ds.GetData(source)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	sum := &Summary{
		RunID:       uuid.NewString(),
		Source:      ds.Source(),
		Rows:        df.Nrow(),
		Columns:     df.Names(),
		MCAR:        []MCAR{},
		TargetMeans: make(map[string][]GroupMean),
		Files:       []string{},
	}
	hasTarget := utils.HasColumn(df, r.cfg.Target)

	// 缺失值
	if sum.MissingColumns, err = ds.GetMissingColumns(); err != nil {
		return nil, err
	}
	if hasTarget {
		for _, col := range sum.MissingColumns {
			if col == r.cfg.Target {
				continue
			}
			res, err := r.mcar(ds, col)
			if err != nil {
				return nil, err
			}
			sum.MCAR = append(sum.MCAR, res)
		}
	} else {
		r.logger.Info("数据集没有结果列, 跳过 MCAR 检验", zap.String("source", sum.Source), zap.String("target", r.cfg.Target))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts, err := ds.PlotMissingData()
	if err != nil {
		return nil, err
	}
	if err := r.save(sum, counts, "missing_counts.png"); err != nil {
		return nil, err
	}
	matrix, err := ds.PlotMissingMatrix()
	if err != nil {
		return nil, err
	}
	if err := r.save(sum, matrix, "missing_matrix.png"); err != nil {
		return nil, err
	}

	// 清洗与派生列
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ds.CleanData(); err != nil {
		return nil, err
	}
	cur, err := ds.Data()
	if err != nil {
		return nil, err
	}
	if utils.HasColumn(cur, "Name") {
		if err := ds.ExtractTitle(); err != nil {
			return nil, err
		}
		if cur, err = ds.Data(); err != nil {
			return nil, err
		}
	}

	// 分组均值与频数图
	for _, col := range r.cfg.Report.CountColumns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !utils.HasColumn(cur, col) {
			r.logger.Debug("报告列不存在, 跳过", zap.String("column", col))
			continue
		}
		if hasTarget && cur.Col(col).Type() != series.Float {
			means, err := ds.GetTargetCorrelation(col, "")
			if err != nil {
				return nil, err
			}
			sum.TargetMeans[col] = groupMeans(means)
		}
		vc, err := ds.GetValueCounts(col, false)
		if err != nil {
			return nil, err
		}
		if len(vc) == 0 {
			continue
		}
		fig, err := ds.PlotValueCounts(col)
		if err != nil {
			return nil, err
		}
		if err := r.save(sum, fig, fmt.Sprintf("value_counts_%s.png", col)); err != nil {
			return nil, err
		}
	}

	// 相关矩阵
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var heatCols []string
	for _, col := range r.cfg.Report.HeatmapCols {
		if utils.HasColumn(cur, col) && utils.IsNumeric(cur.Col(col)) {
			heatCols = append(heatCols, col)
		}
	}
	if len(heatCols) > 0 {
		h, err := ds.GetCorrelationHeatmap(heatCols, r.cfg.Report.Method, true, plot.CmapCoolwarm)
		if err != nil {
			return nil, err
		}
		if err := r.save(sum, h, "correlation.png"); err != nil {
			return nil, err
		}
	}

	// 编码后导出
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, col := range r.cfg.Report.EncodeColumns {
		if !utils.HasColumn(cur, col) {
			continue
		}
		if err := ds.EncodeLabels(col, false); err != nil {
			return nil, err
		}
	}
	xlsxName := sum.Source + "_clean.xlsx"
	if err := ds.SaveToExcel(filepath.Join(r.cfg.OutputDir, xlsxName)); err != nil {
		return nil, err
	}
	sum.Files = append(sum.Files, xlsxName)
	csvName := sum.Source + "_clean.csv"
	if err := ds.SaveToCSV(filepath.Join(r.cfg.OutputDir, csvName)); err != nil {
		return nil, err
	}
	sum.Files = append(sum.Files, csvName)

	sum.GeneratedAt = time.Now()
	sum.Elapsed = time.Since(t1).String()
	if err := writeSummary(filepath.Join(r.cfg.OutputDir, SummaryFile), sum); err != nil {
		return nil, err
	}
	r.logger.Info(fmt.Sprintf("报告生成完成, 用时: %v", sum.Elapsed),
		zap.String("run_id", sum.RunID), zap.String("source", sum.Source), zap.String("dir", r.cfg.OutputDir), zap.Int("files", len(sum.Files)))
	return sum, nil
}

// mcar 方差为零不算错误, 记录为不能判断
func (r *Runner) mcar(ds *processor.Titanic, col string) (MCAR, error) {
	res, err := ds.MCARResult(col)
	if errors.Is(err, stats.ErrZeroVariance) {
		r.logger.Warning("样本方差为零, p 值无定义", zap.String("column", col))
		return MCAR{Column: col, DoF: res.DoF}, nil
	}
	if err != nil {
		return MCAR{}, err
	}
	return MCAR{
		Column: col,
		T:      finite(res.T),
		P:      finite(res.P),
		DoF:    res.DoF,
		MCAR:   res.P > r.cfg.Report.Alpha,
	}, nil
}

func (r *Runner) save(sum *Summary, fig plot.Figure, name string) error {
	if err := plot.SavePNG(fig, filepath.Join(r.cfg.OutputDir, name)); err != nil {
		return fmt.Errorf("保存 %s 失败: %w", name, err)
	}
	sum.Files = append(sum.Files, name)
	return nil
}

func groupMeans(means []processor.TargetMean) []GroupMean {
	out := make([]GroupMean, len(means))
	for i, m := range means {
		out[i] = GroupMean{Group: m.Group, Mean: finite(m.Mean), Count: m.Count}
	}
	return out
}

// finite JSON 不能表示 NaN, 写为 null
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func writeSummary(path string, sum *Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化摘要失败: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ReadSummary 读取报告目录中的摘要
func ReadSummary(dir string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	if err != nil {
		return nil, err
	}
	var sum Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("解析摘要失败: %w", err)
	}
	return &sum, nil
}
