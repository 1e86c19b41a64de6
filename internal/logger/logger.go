package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup は指定レベルのJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault はInfoレベルのJSON構造化ログをグローバルロガーとして設定する。
// 組み込みライブラリとして使われるため、ホストアプリが独自のロガーを
// 注入する場合はこの関数を呼ばずSetupの戻り値を各コンポーネントに渡すこと。
func SetupDefault(w io.Writer) {
	logger := Setup(w, slog.LevelInfo)
	slog.SetDefault(logger)
}
