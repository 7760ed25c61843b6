package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the rotated main log file inside the log directory.
const LogFileName = "translator.log"

var (
	setupOnce  sync.Once
	outputMu   sync.Mutex
	fileWriter *lumberjack.Logger
)

// LogFormatter renders "[time] [level] [file:line] message key=value".
type LogFormatter struct{}

// Format implements logrus.Formatter.
func (f *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}
	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}
	fmt.Fprintf(b, "[%s] [%-5s]", timestamp, level)
	if entry.HasCaller() {
		fmt.Fprintf(b, " [%s]", formatSource(entry.Caller.File, entry.Caller.Line))
	}
	b.WriteByte(' ')
	b.WriteString(strings.TrimRight(entry.Message, "\n"))

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// SetupBaseLogger installs the formatter, caller reporting and the ring
// buffer hook on the standard logger. It is safe to call more than once.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stdout)
		log.SetReportCaller(true)
		log.SetFormatter(&LogFormatter{})
		log.AddHook(GlobalBuffer)
	})
}

// SetLogLevel maps a textual level onto logrus. Unknown values select info.
func SetLogLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "verbose":
		log.SetLevel(log.DebugLevel)
	case "warn", "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "quiet", "silent":
		log.SetLevel(log.FatalLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// ConfigureLogOutput switches the standard logger between stdout and a
// rotating file under dir.
func ConfigureLogOutput(toFile bool, dir string) error {
	outputMu.Lock()
	defer outputMu.Unlock()

	if !toFile {
		log.SetOutput(os.Stdout)
		closeFileWriterLocked()
		return nil
	}
	if strings.TrimSpace(dir) == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("logging: failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, LogFileName)
	if fileWriter != nil && fileWriter.Filename == path {
		return nil
	}
	closeFileWriterLocked()
	fileWriter = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   false,
	}
	log.SetOutput(fileWriter)
	return nil
}

// Output returns the writer currently used for log files, or stdout.
func Output() io.Writer {
	outputMu.Lock()
	defer outputMu.Unlock()
	if fileWriter != nil {
		return fileWriter
	}
	return os.Stdout
}

// CloseLogOutput flushes and closes the rotating log file, if any.
func CloseLogOutput() {
	outputMu.Lock()
	defer outputMu.Unlock()
	closeFileWriterLocked()
	log.SetOutput(os.Stdout)
}

func closeFileWriterLocked() {
	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}
}
