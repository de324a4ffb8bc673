package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Level represents the logging level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

var log = logrus.New()

func init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	// Set log level from environment
	switch os.Getenv("LOCKSTEP_LOG_LEVEL") {
	case "DEBUG", "debug":
		log.SetLevel(logrus.DebugLevel)
	case "WARN", "warn", "WARNING", "warning":
		log.SetLevel(logrus.WarnLevel)
	case "ERROR", "error":
		log.SetLevel(logrus.ErrorLevel)
	case "FATAL", "fatal":
		log.SetLevel(logrus.FatalLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

// SetLevel sets the logging level
func SetLevel(level Level) {
	log.SetLevel(logrusLevel(level))
}

// logrusLevel maps a Level to the underlying logrus level
func logrusLevel(level Level) logrus.Level {
	switch level {
	case DEBUG:
		return logrus.DebugLevel
	case WARN:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	case FATAL:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// Log writes message parts at the given level. It is the default sink
// for the migration engine.
func Log(level Level, args ...interface{}) {
	switch level {
	case DEBUG:
		log.Debug(args...)
	case WARN:
		log.Warn(args...)
	case ERROR:
		log.Error(args...)
	case FATAL:
		log.Fatal(args...)
	default:
		log.Info(args...)
	}
}

// Debug logs a debug message
func Debug(args ...interface{}) {
	log.Debug(args...)
}

// Info logs an info message
func Info(args ...interface{}) {
	log.Info(args...)
}

// Warn logs a warning message
func Warn(args ...interface{}) {
	log.Warn(args...)
}

// Error logs an error message
func Error(args ...interface{}) {
	log.Error(args...)
}

// Fatal logs a fatal message and exits
func Fatal(args ...interface{}) {
	log.Fatal(args...)
}

// Debugf logs a debug message with formatting
func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Infof logs an info message with formatting
func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Warnf logs a warning message with formatting
func Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// Errorf logs an error message with formatting
func Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

// Fatalf logs a fatal message with formatting and exits
func Fatalf(format string, args ...interface{}) {
	log.Fatalf(format, args...)
}
