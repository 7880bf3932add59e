// Package log provides the structured logging facade used across linkd.
// Callers pass alternating key/value pairs after the message.
package log

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

func init() {
	logger.SetOutput(os.Stderr)
	Configure("info", "console")
}

// Configure sets the log level and output format.
// Levels: trace, debug, info, warn, error. Formats: console, json.
func Configure(level, format string) {
	switch level {
	case "trace":
		logger.SetLevel(logrus.TraceLevel)
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
	}
}

// Trace logs a message at trace level
func Trace(msg string, args ...any) {
	logger.WithFields(fields(args)).Trace(msg)
}

// Debug logs a message at debug level
func Debug(msg string, args ...any) {
	logger.WithFields(fields(args)).Debug(msg)
}

// Info logs a message at info level
func Info(msg string, args ...any) {
	logger.WithFields(fields(args)).Info(msg)
}

// Warn logs a message at warn level
func Warn(msg string, args ...any) {
	logger.WithFields(fields(args)).Warn(msg)
}

// Error logs a message at error level
func Error(msg string, args ...any) {
	logger.WithFields(fields(args)).Error(msg)
}

func fields(args []any) logrus.Fields {
	f := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		f[key] = args[i+1]
	}
	if len(args)%2 != 0 {
		f["arg"] = args[len(args)-1]
	}
	return f
}
