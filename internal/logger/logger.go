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

// FromVerbosity は -v フラグの回数をログレベルに変換する
// 0回: Warn、1回: Info、2回以上: Debug
func FromVerbosity(v int) Level {
	switch {
	case v <= 0:
		return LevelWarn
	case v == 1:
		return LevelInfo
	default:
		return LevelDebug
	}
}

// Logger はスレッドセーフなロガー
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel Level
}

// Default はデフォルトのロガー
// RTTサンプルが標準出力を使うため、ログは標準エラーに出す
var Default = New(os.Stderr, LevelWarn)

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

// log は指定されたレベルでログを出力する
func (l *Logger) log(level Level, connID string, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.minLevel {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, args...)

	if connID != "" {
		_, _ = fmt.Fprintf(l.out, "[%s] [%s] [%s] %s\n", timestamp, level, connID, msg)
	} else {
		_, _ = fmt.Fprintf(l.out, "[%s] [%s] %s\n", timestamp, level, msg)
	}
}

// Debug はデバッグログを出力する
func (l *Logger) Debug(connID string, format string, args ...any) {
	l.log(LevelDebug, connID, format, args...)
}

// Info は情報ログを出力する
func (l *Logger) Info(connID string, format string, args ...any) {
	l.log(LevelInfo, connID, format, args...)
}

// Warn は警告ログを出力する
func (l *Logger) Warn(connID string, format string, args ...any) {
	l.log(LevelWarn, connID, format, args...)
}

// Error はエラーログを出力する
func (l *Logger) Error(connID string, format string, args ...any) {
	l.log(LevelError, connID, format, args...)
}

// グローバル関数（デフォルトロガーを使用）

// Debug はデバッグログを出力する
func Debug(connID string, format string, args ...any) {
	Default.Debug(connID, format, args...)
}

// Info は情報ログを出力する
func Info(connID string, format string, args ...any) {
	Default.Info(connID, format, args...)
}

// Warn は警告ログを出力する
func Warn(connID string, format string, args ...any) {
	Default.Warn(connID, format, args...)
}

// Error はエラーログを出力する
func Error(connID string, format string, args ...any) {
	Default.Error(connID, format, args...)
}
