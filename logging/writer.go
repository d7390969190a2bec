package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// WriterOptions 写入型日志提供者的选项
type WriterOptions struct {
	Output    io.Writer
	Formatter Formatter
	// Async 为 true 时通过 AsyncWriter 在后台写出
	Async      bool
	BufferSize int
	// Closer 在提供者关闭时一并关闭，例如打开的日志文件
	Closer io.Closer
}

// WriterLoggerProvider 把格式化后的日志写到 io.Writer。
// 控制台和文件输出都基于它。
type WriterLoggerProvider struct {
	output       io.Writer
	formatter    Formatter
	async        *AsyncWriter
	closer       io.Closer
	minimumLevel LogLevel
	levelMu      sync.RWMutex
	writeMu      sync.Mutex
}

// NewWriterLoggerProvider 创建写入型日志提供者
func NewWriterLoggerProvider(options WriterOptions) *WriterLoggerProvider {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	if options.Formatter == nil {
		options.Formatter = NewTextFormatter()
	}
	p := &WriterLoggerProvider{
		output:       options.Output,
		formatter:    options.Formatter,
		closer:       options.Closer,
		minimumLevel: LogLevelInfo,
	}
	if options.Async {
		p.async = NewAsyncWriter(options.Output, options.Formatter, options.BufferSize)
	}
	return p
}

func (p *WriterLoggerProvider) CreateLogger(category string) Logger {
	return &writerLogger{provider: p, category: category}
}

func (p *WriterLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.levelMu.Lock()
	defer p.levelMu.Unlock()
	p.minimumLevel = level
}

func (p *WriterLoggerProvider) enabled(level LogLevel) bool {
	p.levelMu.RLock()
	defer p.levelMu.RUnlock()
	return level >= p.minimumLevel
}

func (p *WriterLoggerProvider) write(entry *LogEntry) {
	if p.async != nil {
		p.async.WriteLog(entry)
		return
	}

	data, err := p.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: format: %v\n", err)
		return
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, _ = p.output.Write(data)
}

// Close 写完异步队列并关闭底层输出
func (p *WriterLoggerProvider) Close() error {
	if p.async != nil {
		if err := p.async.Close(); err != nil {
			return err
		}
	}
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// writerLogger 级别在写入时从提供者读取，SetMinimumLevel 对已创建的 Logger 也生效
type writerLogger struct {
	provider *WriterLoggerProvider
	category string
	fields   []Field
}

func (l *writerLogger) Trace(msg string, fields ...Field) { l.Log(LogLevelTrace, msg, fields...) }
func (l *writerLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *writerLogger) Info(msg string, fields ...Field) { l.Log(LogLevelInfo, msg, fields...) }
func (l *writerLogger) Warn(msg string, fields ...Field) { l.Log(LogLevelWarn, msg, fields...) }
func (l *writerLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }

func (l *writerLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	_ = l.provider.Close()
	os.Exit(1)
}

func (l *writerLogger) Log(level LogLevel, msg string, fields ...Field) {
	if !l.provider.enabled(level) {
		return
	}
	l.provider.write(&LogEntry{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Message:  msg,
		Fields:   mergeFields(l.fields, fields),
	})
}

func (l *writerLogger) WithFields(fields ...Field) Logger {
	return &writerLogger{provider: l.provider, category: l.category, fields: mergeFields(l.fields, fields)}
}

func (l *writerLogger) WithCategory(category string) Logger {
	return &writerLogger{provider: l.provider, category: category, fields: l.fields}
}
