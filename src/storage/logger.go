package storage

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel 定义日志级别类型
type LogLevel int

// 日志级别常量定义
const (
	DEBUG   LogLevel = iota // 调试信息
	INFO                    // 普通信息
	WARNING                 // 警告信息
	ERROR                   // 错误信息
	FATAL                   // 致命错误
)

// Logger 日志记录器结构体
type Logger struct {
	filename string
	file     *os.File // 日志文件句柄
	level    zap.AtomicLevel
	console  bool        // 是否同时输出到 stderr
	zl       *zap.Logger // 实际写入的 zap 记录器
	mu       sync.Mutex  // 互斥锁，保证并发安全
}

// NewLogger 创建新的日志记录器
// 参数:
//
//	filename: 日志文件路径
//	level: 最低记录级别 (debug/info/warning/error)
//	console: 是否同时输出到标准错误
//
// 返回值:
//
//	*Logger: 日志记录器实例
//	error: 创建过程中的错误
func NewLogger(filename, level string, console bool) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	// 打开或创建日志文件，权限设置为0644
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	l := &Logger{
		filename: filename,
		file:     file,
		level:    zap.NewAtomicLevelAt(lvl.zapLevel()),
		console:  console,
	}
	l.zl = l.build()
	return l, nil
}

// NewNopLogger 返回不输出任何内容的记录器
func NewNopLogger() *Logger {
	return &Logger{level: zap.NewAtomicLevelAt(zapcore.FatalLevel), zl: zap.NewNop()}
}

func (l *Logger) build() *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(l.file), l.level),
	}
	if l.console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), l.level))
	}
	return zap.New(zapcore.NewTee(cores...))
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.zl.Sync()
	// 关闭后的日志直接丢弃
	l.zl = zap.NewNop()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Reopen 重新打开一个文件
// 参数：
// filename：新文件的路径
// 返回值：
// error：重建文件时的错误
func (l *Logger) Reopen(filename string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reopen(filename)
}

func (l *Logger) reopen(filename string) error {
	// 关闭旧文件
	if l.file != nil {
		_ = l.zl.Sync()
		_ = l.file.Close()
	}

	// 重新打开
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.filename = filename
	l.file = file
	l.zl = l.build()
	return nil
}

// Log 记录日志方法
// 参数:
//
//	level: 日志级别
//	message: 日志消息内容
//	fields: 附加的结构化字段
func (l *Logger) Log(level LogLevel, message string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.mu.Lock()         // 加锁保证线程安全
	defer l.mu.Unlock() // 方法结束时自动解锁

	if ce := l.zl.Check(level.zapLevel(), message); ce != nil {
		ce.Write(fields...)
	}
}

// CheckRotate 日志文件超过 maxSize (形如 "10 * 1024 * 1024") 时轮转
func (l *Logger) CheckRotate(maxSize string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	info, err := l.file.Stat()
	if err != nil {
		return err
	}

	limit, err := eval(maxSize)
	if err != nil {
		return err
	}
	if limit > 0 && info.Size() > limit {
		return l.rotateLog()
	}
	return nil
}

func (l *Logger) rotateLog() error {
	name := l.filename
	if l.file != nil {
		_ = l.zl.Sync()
		_ = l.file.Close()
		l.file = nil
		ext := ""
		base := name
		if i := strings.LastIndex(name, "."); i > 0 {
			base, ext = name[:i], name[i:]
		}
		if err := os.Rename(name, fmt.Sprintf("%s.%s%s", base, time.Now().Format("20060102150405"), ext)); err != nil {
			// 改名失败时继续写原文件
			if rerr := l.reopen(name); rerr != nil {
				return errors.Join(err, rerr)
			}
			return err
		}
	}
	return l.reopen(name)
}

// ParseLevel 将字符串解析为日志级别
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARNING, nil
	case "error":
		return ERROR, nil
	case "fatal":
		return FATAL, nil
	default:
		return INFO, fmt.Errorf("未知日志级别: %s", s)
	}
}

// String 实现LogLevel的String方法
// 返回值:
//
//	string: 日志级别的字符串表示
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// FATAL 只记录, 不退出进程
func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARNING:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.DPanicLevel
	default:
		return zapcore.InfoLevel
	}
}

func eval(expr string) (int64, error) {
	if strings.TrimSpace(expr) == "" {
		return 0, nil
	}
	parts := strings.Split(expr, "*")
	var result int64 = 1
	for _, part := range parts {
		num, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("无法解析日志大小 %q: %w", expr, err)
		}
		result *= num
	}
	return result, nil
}

// 以下是快捷日志方法
func (l *Logger) Debug(msg string, fields ...zap.Field)   { l.Log(DEBUG, msg, fields...) }   // 记录调试信息
func (l *Logger) Info(msg string, fields ...zap.Field)    { l.Log(INFO, msg, fields...) }    // 记录普通信息
func (l *Logger) Warning(msg string, fields ...zap.Field) { l.Log(WARNING, msg, fields...) } // 记录警告信息
func (l *Logger) Error(msg string, fields ...zap.Field)   { l.Log(ERROR, msg, fields...) }   // 记录错误信息
func (l *Logger) Fatal(msg string, fields ...zap.Field)   { l.Log(FATAL, msg, fields...) }   // 记录致命错误
