package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// LogEntry represents a single log record.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Scope     string `json:"scope,omitempty"`
	Message   string `json:"message"`
}

var (
	mu          sync.RWMutex
	logEntries  []LogEntry
	maxEntries  = 1000                   // Keep last 1000 in memory
	maxFileSize = int64(5 * 1024 * 1024) // 5MB limit
	logFilePath string
	logFile     *os.File
	logChan     = make(chan LogEntry, 100)
	done        chan struct{}
	workerDone  chan struct{}
	subscribers = make(map[chan LogEntry]bool)
	subsMu      sync.RWMutex

	consoleMu sync.Mutex
	console   io.Writer = os.Stdout

	// Credentials that must never reach the console or the log file.
	redactions = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(Bearer\s+)[A-Za-z0-9\-._~+/]+=*`), "${1}REDACTED"},
		{regexp.MustCompile(`(Basic\s+)[A-Za-z0-9+/]{8,}=*`), "${1}REDACTED"},
		{regexp.MustCompile(`(?i)(client_secret=)[^&\s]+`), "${1}REDACTED"},
		{regexp.MustCompile(`(?i)("access_token"\s*:\s*")[^"]+`), "${1}REDACTED"},
	}
)

// Init initializes the logging system. Log files go to <dataDir>/logs.
func Init(dataDir string) error {
	mu.Lock()
	defer mu.Unlock()

	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFileName := fmt.Sprintf("%s-harness.log", time.Now().Format("20060102"))
	logFilePath = filepath.Join(logDir, logFileName)

	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f

	done = make(chan struct{})
	workerDone = make(chan struct{})
	go logWorker()

	return nil
}

// SetOutput redirects the console echo. A nil writer silences it.
func SetOutput(w io.Writer) {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	if w == nil {
		w = io.Discard
	}
	console = w
}

// Redact masks credentials in message.
func Redact(message string) string {
	for _, r := range redactions {
		message = r.re.ReplaceAllString(message, r.repl)
	}
	return message
}

// AddLog adds a new log entry.
func AddLog(level, message string) {
	AddScopedLog(level, "", message)
}

// AddScopedLog adds a log entry attributed to scope, typically a script key
// or a component name such as "http" or "mock".
func AddScopedLog(level, scope, message string) {
	message = Redact(message)

	entry := LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     level,
		Scope:     scope,
		Message:   message,
	}

	mu.Lock()
	logEntries = append(logEntries, entry)
	if len(logEntries) > maxEntries {
		logEntries = logEntries[len(logEntries)-maxEntries:]
	}
	mu.Unlock()

	consoleMu.Lock()
	if scope != "" {
		fmt.Fprintf(console, "[%s] [%s] [%s] %s\n", entry.Timestamp, level, scope, message)
	} else {
		fmt.Fprintf(console, "[%s] [%s] %s\n", entry.Timestamp, level, message)
	}
	consoleMu.Unlock()

	// Send to file worker
	select {
	case logChan <- entry:
	default:
		// Drop log if channel is full to avoid blocking
	}

	subsMu.RLock()
	for sub := range subscribers {
		select {
		case sub <- entry:
		default:
			// Drop if subscriber is slow
		}
	}
	subsMu.RUnlock()
}

// Subscribe returns a channel that receives new log entries.
func Subscribe() chan LogEntry {
	subsMu.Lock()
	defer subsMu.Unlock()
	ch := make(chan LogEntry, 100)
	subscribers[ch] = true
	return ch
}

// Unsubscribe removes a log subscriber.
func Unsubscribe(ch chan LogEntry) {
	subsMu.Lock()
	defer subsMu.Unlock()
	if _, ok := subscribers[ch]; !ok {
		return
	}
	delete(subscribers, ch)
	close(ch)
}

// GetLogs returns all logs currently in memory.
func GetLogs() []LogEntry {
	mu.RLock()
	defer mu.RUnlock()

	res := make([]LogEntry, len(logEntries))
	copy(res, logEntries)
	return res
}

// ClearLogs wipes both memory and file logs.
func ClearLogs() error {
	mu.Lock()
	defer mu.Unlock()

	logEntries = []LogEntry{}

	if logFilePath == "" {
		return nil
	}
	if logFile != nil {
		logFile.Close()
	}

	f, err := os.OpenFile(logFilePath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	logFile = f

	return nil
}

// GetLogFilePath returns the path to the log file.
func GetLogFilePath() string {
	mu.RLock()
	defer mu.RUnlock()
	return logFilePath
}

// Close flushes and closes the log file.
func Close() {
	if done != nil {
		close(done)
		if workerDone != nil {
			<-workerDone // Wait for worker to finish
		}
		done = nil
	}

	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func logWorker() {
	defer close(workerDone)
	for {
		select {
		case entry := <-logChan:
			writeEntry(entry)
		case <-done:
			// Flush remaining logs
			for {
				select {
				case entry := <-logChan:
					writeEntry(entry)
				default:
					return
				}
			}
		}
	}
}

func writeEntry(entry LogEntry) {
	mu.Lock()
	defer mu.Unlock()

	f := logFile
	if f == nil {
		return
	}

	// Simple circular strategy: truncate once the size limit is passed.
	if info, err := f.Stat(); err == nil && info.Size() > maxFileSize {
		f.Close()
		f, err = os.OpenFile(logFilePath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logFile = nil
			return
		}
		logFile = f
		truncateEntry := LogEntry{
			Timestamp: time.Now().Format(time.RFC3339),
			Level:     "INFO",
			Message:   "Log file reached 5MB limit and was truncated.",
		}
		data, _ := json.Marshal(truncateEntry)
		f.Write(data)
		f.Write([]byte("\n"))
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	f.Write(data)
	f.Write([]byte("\n"))
}
