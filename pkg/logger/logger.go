package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// levelVar は実行時にログレベルを切り替えるための変数
var levelVar = new(slog.LevelVar)

// current は使用中のslogロガー（SetOutputで差し替え可能）
var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(newLogger(os.Stderr))
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar}))
}

// SetLevel はログレベルを設定（debug/info/warn/error、不明な値はinfo）
func SetLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// SetOutput は出力先を差し替え（テスト用）
func SetOutput(w io.Writer) {
	current.Store(newLogger(w))
}

// DebugCF はコンポーネント名とフィールド付きでデバッグログを出力
func DebugCF(component, msg string, fields map[string]interface{}) {
	current.Load().Debug(msg, attrs(component, fields)...)
}

// InfoCF はコンポーネント名とフィールド付きで情報ログを出力
func InfoCF(component, msg string, fields map[string]interface{}) {
	current.Load().Info(msg, attrs(component, fields)...)
}

// WarnCF はコンポーネント名とフィールド付きで警告ログを出力
func WarnCF(component, msg string, fields map[string]interface{}) {
	current.Load().Warn(msg, attrs(component, fields)...)
}

// ErrorCF はコンポーネント名とフィールド付きでエラーログを出力
func ErrorCF(component, msg string, fields map[string]interface{}) {
	current.Load().Error(msg, attrs(component, fields)...)
}

func attrs(component string, fields map[string]interface{}) []any {
	out := make([]any, 0, 2+len(fields)*2)
	out = append(out, "component", component)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}
