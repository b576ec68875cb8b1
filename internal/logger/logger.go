package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level はログレベルを表す
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger はスレッドセーフなロガー
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel Level
}

// Default はデフォルトのロガー
var Default = New(os.Stdout, LevelInfo)

// New は新しいロガーを作成する
func New(out io.Writer, minLevel Level) *Logger {
	return &Logger{
		out:      out,
		minLevel: minLevel,
	}
}

// SetLevel はログレベルを設定する
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// SetOutput はログの出力先を変更する
func (l *Logger) SetOutput(out io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = out
}

// log は指定されたレベルでログを出力する
func (l *Logger) log(level Level, serviceID string, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.minLevel {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, args...)

	if serviceID != "" {
		_, _ = fmt.Fprintf(l.out, "[%s] [%s] [%s] %s\n", timestamp, level, serviceID, msg)
	} else {
		_, _ = fmt.Fprintf(l.out, "[%s] [%s] %s\n", timestamp, level, msg)
	}
}

// Debug はデバッグログを出力する
func (l *Logger) Debug(serviceID string, format string, args ...any) {
	l.log(LevelDebug, serviceID, format, args...)
}

// Info は情報ログを出力する
func (l *Logger) Info(serviceID string, format string, args ...any) {
	l.log(LevelInfo, serviceID, format, args...)
}

// Warn は警告ログを出力する
func (l *Logger) Warn(serviceID string, format string, args ...any) {
	l.log(LevelWarn, serviceID, format, args...)
}

// Error はエラーログを出力する
func (l *Logger) Error(serviceID string, format string, args ...any) {
	l.log(LevelError, serviceID, format, args...)
}

// グローバル関数（デフォルトロガーを使用）

// Debug はデバッグログを出力する
func Debug(serviceID string, format string, args ...any) {
	Default.Debug(serviceID, format, args...)
}

// Info は情報ログを出力する
func Info(serviceID string, format string, args ...any) {
	Default.Info(serviceID, format, args...)
}

// Warn は警告ログを出力する
func Warn(serviceID string, format string, args ...any) {
	Default.Warn(serviceID, format, args...)
}

// Error はエラーログを出力する
func Error(serviceID string, format string, args ...any) {
	Default.Error(serviceID, format, args...)
}
