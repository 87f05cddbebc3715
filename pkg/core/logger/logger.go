// Package logger holds the process-wide arbor logger.
package logger

import (
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

func consoleWriter() models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}
}

// Get returns the global logger, creating a console logger on first use.
func Get() arbor.ILogger {
	loggerMutex.RLock()
	if globalLogger != nil {
		loggerMutex.RUnlock()
		return globalLogger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(consoleWriter())
	}
	return globalLogger
}

// Init replaces the global logger with a console logger at level
// ("debug", "info", "warn", "error").
func Init(level string) arbor.ILogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if level == "" {
		level = "info"
	}
	globalLogger = arbor.NewLogger().WithConsoleWriter(consoleWriter()).WithLevelFromString(level)
	return globalLogger
}
