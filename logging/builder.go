package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Options 是 "logging" 配置节的结构
type Options struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"` // text 或 json
	File       string `json:"file" yaml:"file"`
	Async      bool   `json:"async" yaml:"async"`
	BufferSize int    `json:"buffer_size" yaml:"buffer_size"`
	NoColor    bool   `json:"no_color" yaml:"no_color"`
}

// ConsoleLoggerOptions 控制台日志选项
type ConsoleLoggerOptions struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
	Output           io.Writer
}

// LoggingBuilder 日志构建器
type LoggingBuilder struct {
	providers    []LoggerProvider
	minimumLevel LogLevel
	mu           sync.RWMutex
}

// NewLoggingBuilder 创建日志构建器
func NewLoggingBuilder() *LoggingBuilder {
	return &LoggingBuilder{
		providers:    make([]LoggerProvider, 0),
		minimumLevel: LogLevelInfo,
	}
}

// SetMinimumLevel 设置最小日志级别
func (b *LoggingBuilder) SetMinimumLevel(level LogLevel) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.minimumLevel = level
	return b
}

// AddProvider 添加日志提供者
func (b *LoggingBuilder) AddProvider(provider LoggerProvider) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.providers = append(b.providers, provider)
	return b
}

// AddConsole 添加控制台日志
func (b *LoggingBuilder) AddConsole(options ...ConsoleLoggerOptions) *LoggingBuilder {
	opts := ConsoleLoggerOptions{
		IncludeTimestamp: true,
		TimestampFormat:  "2006-01-02 15:04:05",
		ColorOutput:      true,
		Output:           os.Stdout,
	}
	if len(options) > 0 {
		opts = options[0]
	}
	return b.AddWriter(opts.Output, &TextFormatter{
		IncludeTimestamp: opts.IncludeTimestamp,
		TimestampFormat:  opts.TimestampFormat,
		ColorOutput:      opts.ColorOutput,
	})
}

// AddWriter 添加写到任意 io.Writer 的日志
func (b *LoggingBuilder) AddWriter(w io.Writer, formatter Formatter) *LoggingBuilder {
	return b.AddProvider(NewWriterLoggerProvider(WriterOptions{Output: w, Formatter: formatter}))
}

// AddFile 添加追加写入的文件日志，文件在 LoggerFactory 关闭时关闭。
// 打开失败时退化为标准错误输出。
func (b *LoggingBuilder) AddFile(path string, formatter Formatter) *LoggingBuilder {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: open log file %s: %v\n", path, err)
		return b.AddWriter(os.Stderr, formatter)
	}
	return b.AddProvider(NewWriterLoggerProvider(WriterOptions{
		Output:    file,
		Formatter: formatter,
		Closer:    file,
	}))
}

// Configure 按配置节设置级别和输出
func (b *LoggingBuilder) Configure(opts Options) (*LoggingBuilder, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return b, err
	}
	b.SetMinimumLevel(level)

	var formatter Formatter
	switch strings.ToLower(opts.Format) {
	case "", "text":
		formatter = &TextFormatter{
			IncludeTimestamp: true,
			TimestampFormat:  "2006-01-02 15:04:05",
			ColorOutput:      !opts.NoColor && opts.File == "",
		}
	case "json":
		formatter = NewJSONFormatter()
	default:
		return b, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	if opts.File == "" {
		return b.AddProvider(NewWriterLoggerProvider(WriterOptions{
			Output:     os.Stdout,
			Formatter:  formatter,
			Async:      opts.Async,
			BufferSize: opts.BufferSize,
		})), nil
	}

	file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return b, fmt.Errorf("logging: open log file: %w", err)
	}
	return b.AddProvider(NewWriterLoggerProvider(WriterOptions{
		Output:     file,
		Formatter:  formatter,
		Async:      opts.Async,
		BufferSize: opts.BufferSize,
		Closer:     file,
	})), nil
}

// Build 构建日志工厂
func (b *LoggingBuilder) Build() LoggerFactory {
	b.mu.RLock()
	defer b.mu.RUnlock()

	factory := &loggerFactory{
		providers:    make([]LoggerProvider, 0, len(b.providers)),
		minimumLevel: b.minimumLevel,
	}
	for _, provider := range b.providers {
		factory.AddProvider(provider)
	}
	return factory
}

// NewLogger 创建一个默认的控制台 Logger
func NewLogger() Logger {
	return NewLoggingBuilder().AddConsole().Build().CreateLogger("default")
}

// HasProviders 报告是否已经添加了输出
func (b *LoggingBuilder) HasProviders() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.providers) > 0
}
