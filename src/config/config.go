package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

var validate = validator.New()

// 列类型
const (
	TypeInt      = "int"
	TypeFloat    = "float"
	TypeString   = "string"
	TypeCategory = "category"
)

// Column 描述数据集中的一列及其声明类型
type Column struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`                 // int / float / string / category
	Categories []string `json:"categories,omitempty"` // 仅 category 类型使用
}

// Schema 有序的列声明
type Schema []Column

// Config 结构体定义了应用程序的配置结构
type Config struct {
	DataDir   string            `json:"data_dir" envconfig:"DATA_DIR"`                 // 原始数据目录
	Sources   map[string]string `json:"sources" ignored:"true"`                        // 数据集标识 -> 文件名
	Encoding  string            `json:"encoding" envconfig:"ENCODING"`                 // 源文件字符集, 默认 utf-8
	Index     string            `json:"index" envconfig:"INDEX"`                       // 行索引列
	Target    string            `json:"target" envconfig:"TARGET" validate:"required"` // 结果列(是否生还)
	Schema    Schema            `json:"schema" ignored:"true"`
	DropCols  []string          `json:"clean_columns" envconfig:"CLEAN_COLUMNS"` // CleanData 删除的列
	OutputDir string            `json:"output_dir" envconfig:"OUTPUT_DIR"`

	LogName    string `json:"log_name" envconfig:"LOG_NAME"`
	LogLevel   string `json:"log_level" envconfig:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error fatal"`
	LogMaxSize string `json:"log_max_size" envconfig:"LOG_MAX_SIZE"`

	Report struct {
		Schedule      string   `json:"schedule" envconfig:"SCHEDULE"` // cron 表达式, 例如 "@every 1h"
		EncodeColumns []string `json:"encode_columns" envconfig:"ENCODE_COLUMNS"`
		CountColumns  []string `json:"count_columns" envconfig:"COUNT_COLUMNS"`
		HeatmapCols   []string `json:"heatmap_columns" envconfig:"HEATMAP_COLUMNS"`
		Method        string   `json:"method" envconfig:"METHOD" validate:"omitempty,oneof=pearson spearman kendall"`
		Alpha         float64  `json:"alpha" envconfig:"ALPHA" validate:"gt=0,lt=1"`
		Debounce      Duration `json:"debounce" ignored:"true"` // watch 模式下的重跑间隔
	} `json:"report" envconfig:"REPORT"`

	Impute struct {
		MaxIter int    `json:"max_iter" envconfig:"MAX_ITER" validate:"min=1"`
		NSplits int    `json:"n_splits" envconfig:"N_SPLITS" validate:"min=2"`
		Seed    uint64 `json:"seed" envconfig:"SEED"`
	} `json:"impute" envconfig:"IMPUTE"`
}

// DefaultSchema 返回泰坦尼克数据集的固定列声明
func DefaultSchema() Schema {
	return Schema{
		{Name: "PassengerId", Type: TypeInt},
		{Name: "Survived", Type: TypeInt},
		{Name: "Pclass", Type: TypeInt},
		{Name: "Name", Type: TypeString},
		{Name: "Sex", Type: TypeCategory, Categories: []string{"male", "female"}},
		{Name: "Age", Type: TypeFloat},
		{Name: "SibSp", Type: TypeInt},
		{Name: "Parch", Type: TypeInt},
		{Name: "Ticket", Type: TypeString},
		{Name: "Fare", Type: TypeFloat},
		{Name: "Cabin", Type: TypeString},
		{Name: "Embarked", Type: TypeCategory, Categories: []string{"C", "Q", "S"}},
	}
}

// Default 返回默认配置, 每次调用都是新的实例
func Default() *Config {
	cfg := &Config{
		DataDir:    filepath.Join("Titanic", "Data", "Raw"),
		Sources:    map[string]string{"train": "train.csv", "test": "test.csv"},
		Encoding:   "utf-8",
		Index:      "PassengerId",
		Target:     "Survived",
		Schema:     DefaultSchema(),
		DropCols:   []string{"Ticket", "Cabin"},
		OutputDir:  "reports",
		LogName:    "app.log",
		LogLevel:   "info",
		LogMaxSize: "10 * 1024 * 1024",
	}
	cfg.Report.EncodeColumns = []string{"Sex", "Embarked"}
	cfg.Report.CountColumns = []string{"Sex", "Embarked", "Pclass", "Title"}
	cfg.Report.HeatmapCols = []string{"Survived", "Pclass", "Age", "SibSp", "Parch", "Fare"}
	cfg.Report.Method = "pearson"
	cfg.Report.Alpha = 0.05
	cfg.Report.Debounce = Duration(2 * time.Second)
	cfg.Impute.MaxIter = 10
	cfg.Impute.NSplits = 5
	cfg.Impute.Seed = 42
	return cfg
}

// LoadConfig 读取 jsonFolder/jsonFile, 文件不存在时使用默认配置,
// 最后用 TITANIC_ 前缀的环境变量覆盖
func LoadConfig(jsonFolder, jsonFile string) (*Config, error) {
	cfg := Default()

	configFile := filepath.Join(jsonFolder, jsonFile)
	data, err := readFile(configFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// 使用默认配置
	case err != nil:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	default:
		if err := parseConfig(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("TITANIC", cfg); err != nil {
		return nil, fmt.Errorf("读取环境变量失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, cfg *Config) error {
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析Config失败: %w", err)
	}
	return nil
}

// Validate 检查配置的一致性
func (c *Config) Validate() error {
	var errs []error
	if len(c.Schema) == 0 {
		errs = append(errs, errors.New("schema 为空"))
	}
	seen := make(map[string]bool, len(c.Schema))
	for _, col := range c.Schema {
		if seen[col.Name] {
			errs = append(errs, fmt.Errorf("列 %q 重复声明", col.Name))
		}
		seen[col.Name] = true
		switch col.Type {
		case TypeInt, TypeFloat, TypeString:
		case TypeCategory:
			if len(col.Categories) == 0 {
				errs = append(errs, fmt.Errorf("分类列 %q 没有取值", col.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("列 %q 类型 %q 不支持", col.Name, col.Type))
		}
	}
	if c.Index != "" && !seen[c.Index] {
		errs = append(errs, fmt.Errorf("索引列 %q 不在 schema 中", c.Index))
	}
	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("sources 为空"))
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("字段 %s 不满足 %s %s", fe.Namespace(), fe.Tag(), fe.Param()))
		}
	}
	return combineErrors(errs)
}

// SourcePath 根据数据集标识返回文件路径
func (c *Config) SourcePath(name string) (string, bool) {
	file, ok := c.Sources[NormalizeSource(name)]
	if !ok {
		return "", false
	}
	if filepath.IsAbs(file) {
		return file, true
	}
	return filepath.Join(c.DataDir, file), true
}

// NormalizeSource 统一数据集标识的大小写和空白
func NormalizeSource(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup 按列名查找声明
func (s Schema) Lookup(name string) (Column, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Names 返回声明顺序的列名
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	// 使用固定格式字符串
	msg := "配置加载遇到错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
