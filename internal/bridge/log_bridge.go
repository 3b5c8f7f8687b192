package bridge

import (
	"context"
	"os/exec"
	"path/filepath"
	goruntime "runtime"

	"github.com/rs/zerolog"

	"github.com/normanking/voicelink/internal/logging"
)

// LogBridge lets the frontend write to the application log and read it
// back for the diagnostics panel.
type LogBridge struct {
	binding
	logger *logging.Logger
}

// NewLogBridge creates a new log bridge
func NewLogBridge(logger *logging.Logger) *LogBridge {
	return &LogBridge{logger: logger}
}

// Bind sets the Wails context and streams new entries to the frontend.
func (b *LogBridge) Bind(ctx context.Context) {
	b.bind(ctx)
	b.logger.SetOnLog(func(entry logging.LogEntry) {
		b.emit(EventLogEntry, entry)
	})
}

// Log records a frontend message. Unknown levels are logged as info.
func (b *LogBridge) Log(level, component, message string, data map[string]interface{}) {
	if component == "" {
		component = "frontend"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	switch lvl {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		b.logger.Debug(component, message, data)
	case zerolog.WarnLevel:
		b.logger.Warn(component, message, data)
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		b.logger.Error(component, message, nil, data)
	default:
		b.logger.Info(component, message, data)
	}
}

// GetLogHistory returns up to limit recent entries.
func (b *LogBridge) GetLogHistory(limit int) []logging.LogEntry {
	return b.logger.GetHistory(limit)
}

// GetLogPath returns the current log file path
func (b *LogBridge) GetLogPath() string {
	return b.logger.GetLogPath()
}

// RevealLogs opens the log directory in the file manager.
func (b *LogBridge) RevealLogs() error {
	dir := filepath.Dir(b.logger.GetLogPath())

	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", dir)
	case "windows":
		cmd = exec.Command("explorer", dir)
	default:
		cmd = exec.Command("open", dir)
	}
	return cmd.Start()
}

// GetSystemInfo returns details attached to bug reports.
func (b *LogBridge) GetSystemInfo() map[string]interface{} {
	var m goruntime.MemStats
	goruntime.ReadMemStats(&m)
	return map[string]interface{}{
		"os":           goruntime.GOOS,
		"arch":         goruntime.GOARCH,
		"goVersion":    goruntime.Version(),
		"numGoroutine": goruntime.NumGoroutine(),
		"memAllocMB":   m.Alloc / 1024 / 1024,
		"logPath":      b.logger.GetLogPath(),
	}
}
