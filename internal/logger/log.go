// Package logger configures the process-wide phuslu logger and hands out
// component loggers.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/phuslu/log"

	"github.com/sarchlab/nugget/config"
)

// parseLogLevel converts string log level to log.Level
func parseLogLevel(levelStr string) log.Level {
	switch levelStr {
	case "trace":
		return log.TraceLevel
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func createWriter(cfg config.LoggingConfig) (log.Writer, error) {
	var out io.Writer
	switch cfg.Writer {
	case "stdout":
		out = os.Stdout
	case "stderr", "":
		out = os.Stderr
	default:
		return nil, fmt.Errorf("unknown log writer: %s", cfg.Writer)
	}

	switch cfg.Format {
	case "json":
		return &log.IOWriter{Writer: out}, nil
	case "logfmt":
		return &log.ConsoleWriter{
			Writer:    out,
			Formatter: log.LogfmtFormatter{TimeField: "time"}.Formatter,
		}, nil
	case "auto", "":
		return &log.ConsoleWriter{
			ColorOutput:    true,
			EndWithMessage: true,
			Writer:         out,
		}, nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", cfg.Format)
	}
}

// ConfigureLogging configures the global DefaultLogger.
func ConfigureLogging(cfg config.LoggingConfig) error {
	writer, err := createWriter(cfg)
	if err != nil {
		return err
	}

	log.DefaultLogger = log.Logger{
		Level:      parseLogLevel(cfg.Level),
		TimeFormat: "15:04:05.000",
		Writer:     writer,
	}
	return nil
}

// NewLoggerWithContext copies the DefaultLogger and tags it with the
// component name. Call after ConfigureLogging.
func NewLoggerWithContext(component string) log.Logger {
	bl := &log.DefaultLogger
	return log.Logger{
		Level:        bl.Level,
		TimeField:    bl.TimeField,
		TimeFormat:   bl.TimeFormat,
		TimeLocation: bl.TimeLocation,
		Writer:       bl.Writer,
		Context:      log.NewContext(bl.Context).Str("component", component).Value(),
	}
}

// Discard returns a logger that drops everything.
func Discard() log.Logger {
	return log.Logger{
		Level:  log.PanicLevel + 1,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
}
