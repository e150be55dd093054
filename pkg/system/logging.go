package system

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewCLILogger returns the logger used by every command. Diagnostics go to w
// (stderr in practice) so they never mix with command output. Without verbose
// only errors are shown; user-facing messages are printed separately.
func NewCLILogger(w io.Writer, verbose bool) *zap.SugaredLogger {
	level := zapcore.ErrorLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core).Sugar()
}
