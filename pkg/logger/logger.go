package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

var (
	InfoLog  *log.Logger
	ErrorLog *log.Logger
	WarnLog  *log.Logger
	DebugLog *log.Logger
	logFile  *os.File

	mu      sync.RWMutex
	verbose bool
)

const (
	INFO = iota
	DEBUG
)

const flags = log.Ldate | log.Ltime | log.Lshortfile

// InitLogger initializes the logger with a file output and console output.
// An empty filename logs to the console only.
func InitLogger(filename string, level int) error {
	SetVerbose(level == DEBUG)
	if filename == "" {
		Init()
		return nil
	}

	var err error
	logFile, err = os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}

	setOutput(io.MultiWriter(os.Stdout, logFile), io.MultiWriter(os.Stderr, logFile))
	return nil
}

func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func Init() {
	setOutput(os.Stdout, os.Stderr)
}

// SetOutput sends every level to w. Useful for testing.
func SetOutput(w io.Writer) {
	setOutput(w, w)
}

func setOutput(out, errOut io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	InfoLog = log.New(out, "INFO: ", flags)
	WarnLog = log.New(out, "WARN: ", flags)
	DebugLog = log.New(out, "DEBUG: ", flags)
	ErrorLog = log.New(errOut, "ERROR: ", flags)
}

// SetVerbose enables or disables debug output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

func ensure() {
	mu.RLock()
	ready := InfoLog != nil
	mu.RUnlock()
	if !ready {
		Init()
	}
}

func write(l **log.Logger, format string, v ...interface{}) {
	ensure()
	mu.RLock()
	out := *l
	mu.RUnlock()
	out.Output(3, fmt.Sprintf(format, v...))
}

func Info(format string, v ...interface{}) {
	write(&InfoLog, format, v...)
}

func Infof(format string, v ...interface{}) {
	write(&InfoLog, format, v...)
}

func Error(format string, v ...interface{}) {
	write(&ErrorLog, format, v...)
}

func Errorf(format string, v ...interface{}) {
	write(&ErrorLog, format, v...)
}

func Warn(format string, v ...interface{}) {
	write(&WarnLog, format, v...)
}

func Warnf(format string, v ...interface{}) {
	write(&WarnLog, format, v...)
}

// Debugf prints only when verbose mode is enabled.
func Debugf(format string, v ...interface{}) {
	if !IsVerbose() {
		return
	}
	write(&DebugLog, format, v...)
}
