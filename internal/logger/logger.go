package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
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

// ParseLevel は文字列をログレベルに変換する
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// Format は出力フォーマット
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat は文字列を出力フォーマットに変換する
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %s", s)
	}
}

const timestampLayout = "2006-01-02 15:04:05.000"

// Logger はスレッドセーフなロガー
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel Level
	format   Format
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

// SetFormat は出力フォーマットを設定する
func (l *Logger) SetFormat(format Format) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.format = format
}

// SetOutput は出力先を差し替える
func (l *Logger) SetOutput(out io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = out
}

// Enabled は指定レベルが出力対象かを返す
func (l *Logger) Enabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.minLevel
}

type jsonEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Tag     string `json:"tag,omitempty"`
	Message string `json:"msg"`
}

// log は指定されたレベルでログを出力する
func (l *Logger) log(level Level, tag string, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.minLevel {
		return
	}

	timestamp := time.Now().Format(timestampLayout)
	msg := fmt.Sprintf(format, args...)

	if l.format == FormatJSON {
		data, err := json.Marshal(jsonEntry{Time: timestamp, Level: level.String(), Tag: tag, Message: msg})
		if err != nil {
			return
		}
		_, _ = l.out.Write(append(data, '\n'))
		return
	}

	if tag != "" {
		_, _ = fmt.Fprintf(l.out, "[%s] [%s] [%s] %s\n", timestamp, level, tag, msg)
	} else {
		_, _ = fmt.Fprintf(l.out, "[%s] [%s] %s\n", timestamp, level, msg)
	}
}

// Debug はデバッグログを出力する
func (l *Logger) Debug(tag string, format string, args ...any) {
	l.log(LevelDebug, tag, format, args...)
}

// Info は情報ログを出力する
func (l *Logger) Info(tag string, format string, args ...any) {
	l.log(LevelInfo, tag, format, args...)
}

// Warn は警告ログを出力する
func (l *Logger) Warn(tag string, format string, args ...any) {
	l.log(LevelWarn, tag, format, args...)
}

// Error はエラーログを出力する
func (l *Logger) Error(tag string, format string, args ...any) {
	l.log(LevelError, tag, format, args...)
}

// Options はデフォルトロガーの設定
type Options struct {
	Level      string
	Format     string
	File       string // 空なら標準出力
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup はデフォルトロガーを設定する
// File が指定された場合は lumberjack でローテーションされるファイルに出力する
func Setup(opts Options) (io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	format, err := ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		out = lj
		closer = lj
	}

	Default.mu.Lock()
	Default.out = out
	Default.minLevel = level
	Default.format = format
	Default.mu.Unlock()

	return closer, nil
}

// グローバル関数（デフォルトロガーを使用）

// Debug はデバッグログを出力する
func Debug(tag string, format string, args ...any) {
	Default.Debug(tag, format, args...)
}

// Info は情報ログを出力する
func Info(tag string, format string, args ...any) {
	Default.Info(tag, format, args...)
}

// Warn は警告ログを出力する
func Warn(tag string, format string, args ...any) {
	Default.Warn(tag, format, args...)
}

// Error はエラーログを出力する
func Error(tag string, format string, args ...any) {
	Default.Error(tag, format, args...)
}
