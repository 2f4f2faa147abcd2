// Package logger provides structured logging for the game core.
// Every defensive-recovery path in the simulation reports through this,
// so a corrupted save or a skipped tick is always traceable.
package logger

import (
	"fmt"
	"log"
	"os"
)

// Logger provides structured logging with context.
type Logger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

// NewLogger creates a new logger instance.
func NewLogger() *Logger {
	return &Logger{
		infoLogger:  log.New(os.Stdout, "[EMPIRE-INFO] ", log.Ldate|log.Ltime|log.Lshortfile),
		warnLogger:  log.New(os.Stdout, "[EMPIRE-WARN] ", log.Ldate|log.Ltime|log.Lshortfile),
		errorLogger: log.New(os.Stderr, "[EMPIRE-ERROR] ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// Info logs informational messages.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.infoLogger.Output(2, format(msg, args...))
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.warnLogger.Output(2, format(msg, args...))
}

// Error logs error messages.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.errorLogger.Output(2, format(msg, args...))
}

// Event logs a notable game happening (market event, achievement, prestige).
func (l *Logger) Event(eventType string, details string) {
	l.infoLogger.Output(2, fmt.Sprintf("[EVENT:%s] %s", eventType, details))
}

func format(msg string, args ...interface{}) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
