package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

var (
	logger     *logrus.Logger
	loggerOnce sync.Once
	fileLogger *FileLogger
)

// FileLogger is a logrus hook appending every entry as a JSON line, for
// local collectors that tail a file.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// serviceFields stamps the service identity on every entry that does not
// already carry it.
type serviceFields logrus.Fields

func (s serviceFields) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (s serviceFields) Fire(entry *logrus.Entry) error {
	for k, v := range s {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return nil
}

// NewLogger builds a JSON logger writing to out with the service fields
// from cfg attached to every entry.
func NewLogger(cfg *Config, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: timestampFormat,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "@timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	l.AddHook(serviceFields{
		"service.name":    cfg.ServiceName,
		"service.version": cfg.ServiceVersion,
		"environment":     cfg.Environment,
	})
	return l
}

// InitLogger initializes the global logger with the given configuration
func InitLogger(cfg *Config) error {
	var err error
	loggerOnce.Do(func() {
		logger = NewLogger(cfg, os.Stderr)

		if cfg.ExportToFile && cfg.LogsFilePath != "" {
			fileLogger, err = NewFileLogger(cfg.LogsFilePath)
			if err != nil {
				logger.WithError(err).Error("Failed to create file logger")
				return
			}
			logger.AddHook(fileLogger)
		}
	})
	return err
}

// NewFileLogger opens (or creates) filePath for appending.
func NewFileLogger(filePath string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &FileLogger{
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

// Levels returns the log levels this hook is interested in
func (f *FileLogger) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire writes entry as one JSON line
func (f *FileLogger) Fire(entry *logrus.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := make(map[string]interface{}, len(entry.Data)+3)
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[k] = v
	}
	data["@timestamp"] = entry.Time.Format(timestampFormat)
	data["level"] = entry.Level.String()
	data["message"] = entry.Message

	return f.encoder.Encode(data)
}

// Close closes the file logger
func (f *FileLogger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}

// L returns the global logger instance
func L() *logrus.Logger {
	if logger == nil {
		return logrus.StandardLogger()
	}
	return logger
}

// WithContext adds trace information to the logger
func WithContext(ctx context.Context) *logrus.Entry {
	entry := L().WithContext(ctx)

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		entry = entry.WithFields(logrus.Fields{
			"trace.id": span.SpanContext().TraceID().String(),
			"span.id":  span.SpanContext().SpanID().String(),
		})
	}

	return entry
}

// CloseLogger closes any open resources
func CloseLogger() error {
	if fileLogger != nil {
		return fileLogger.Close()
	}
	return nil
}
