package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Log levels
const (
	INFO  = "INFO"
	WARN  = "WARN"
	ERROR = "ERROR"
	DEBUG = "DEBUG"
)

var (
	instance *Logger
	mu       sync.Mutex
)

// Logger struct
type Logger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	debugLogger *log.Logger
	closer      io.Closer
}

// getDefaultLogFilePath returns the default log file path
func getDefaultLogFilePath() (string, error) {
	logDir := filepath.Join(homeDir(), defaultConfigDir)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(logDir, defaultLogName), nil
}

// NewLogger creates the process logger writing to logFilePath and stdout and
// installs it as the one returned by GetLogger. Debug messages reach stdout
// only in debug mode.
func NewLogger(logFilePath string, debugMode bool) (*Logger, error) {
	if logFilePath == "" {
		path, err := getDefaultLogFilePath()
		if err != nil {
			return nil, err
		}
		logFilePath = path
	}

	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	// log to both the file and console
	multiWriter := io.MultiWriter(file, os.Stdout)
	debugWriter := io.Writer(file)
	if debugMode {
		debugWriter = multiWriter
	}

	l := newLogger(multiWriter, debugWriter)
	l.closer = file
	SetLogger(l)
	return l, nil
}

// NewWriterLogger creates a logger sending every level to w.
func NewWriterLogger(w io.Writer) *Logger {
	return newLogger(w, w)
}

func newLogger(w, debug io.Writer) *Logger {
	return &Logger{
		infoLogger:  log.New(w, "["+INFO+"] ", log.Ldate|log.Ltime),
		warnLogger:  log.New(w, "["+WARN+"] ", log.Ldate|log.Ltime),
		errorLogger: log.New(w, "["+ERROR+"] ", log.Ldate|log.Ltime),
		debugLogger: log.New(debug, "["+DEBUG+"] ", log.Ldate|log.Ltime),
	}
}

// SetLogger replaces the instance returned by GetLogger.
func SetLogger(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	instance = l
}

// GetLogger retrieves the process logger. Until NewLogger or SetLogger is
// called it logs to stdout.
func GetLogger() *Logger {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		instance = newLogger(os.Stdout, io.Discard)
	}
	return instance
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Logging methods
func (l *Logger) Info(message string) {
	l.infoLogger.Println(message)
}

func (l *Logger) Warn(message string) {
	l.warnLogger.Println(message)
}

func (l *Logger) Error(message string) {
	l.errorLogger.Println(message)
}

func (l *Logger) Debug(message string) {
	l.debugLogger.Println(message)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Debug(fmt.Sprintf(format, args...))
}
