package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	log     = logrus.New()
	logFile *os.File
)

// Init initializes the logger and creates/opens the log file. Output goes to
// both the file and stdout.
func Init(logFilePath string, level string) error {
	var err error
	logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}

	log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return nil
}

// RotateLog clears the current log file or creates a new one to start fresh
func RotateLog(logFilePath string) error {
	if logFile != nil {
		logFile.Close()
	}

	var err error
	logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}

	log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	return nil
}

// Cleanup closes the log file when the application is done using it
func Cleanup() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	log.SetOutput(os.Stderr)
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func Debug(msg string, keyvals ...interface{}) {
	log.WithFields(fields(keyvals)).Debug(msg)
}

// Info logs an informational message with optional key/value pairs.
func Info(msg string, keyvals ...interface{}) {
	log.WithFields(fields(keyvals)).Info(msg)
}

func Warn(msg string, keyvals ...interface{}) {
	log.WithFields(fields(keyvals)).Warn(msg)
}

// Error logs an error message with optional key/value pairs.
func Error(msg string, keyvals ...interface{}) {
	log.WithFields(fields(keyvals)).Error(msg)
}

func fields(keyvals []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if i+1 >= len(keyvals) {
			f[key] = "(missing)"
			break
		}
		f[key] = keyvals[i+1]
	}
	return f
}
