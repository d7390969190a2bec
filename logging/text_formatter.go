package logging

import "fmt"

// TextFormatter 文本格式化器，输出形如
// 2025-01-02 15:04:05 INFO [di] message {key=value}
type TextFormatter struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
}

// NewTextFormatter 创建文本格式化器
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		IncludeTimestamp: true,
		TimestampFormat:  "2006-01-02 15:04:05",
	}
}

// Format 格式化日志。返回的切片是独立副本，可以异步写出。
func (f *TextFormatter) Format(entry *LogEntry) ([]byte, error) {
	buffer := getBuffer()
	defer putBuffer(buffer)

	if f.IncludeTimestamp {
		buffer.WriteString(entry.Time.Format(f.TimestampFormat))
		buffer.WriteByte(' ')
	}

	if f.ColorOutput {
		buffer.WriteString(colorize(entry.Level, entry.Level.String()))
	} else {
		buffer.WriteString(entry.Level.String())
	}

	if entry.Category != "" {
		buffer.WriteString(" [")
		buffer.WriteString(entry.Category)
		buffer.WriteByte(']')
	}

	buffer.WriteByte(' ')
	buffer.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		buffer.WriteString(" {")
		for i, field := range entry.Fields {
			if i > 0 {
				buffer.WriteString(", ")
			}
			buffer.WriteString(field.Key)
			buffer.WriteByte('=')
			switch v := fieldValue(field.Value).(type) {
			case string:
				buffer.WriteString(quoteIfNeeded(v))
			default:
				fmt.Fprint(buffer, v)
			}
		}
		buffer.WriteByte('}')
	}
	buffer.WriteByte('\n')

	return append([]byte(nil), buffer.Bytes()...), nil
}

// colorize 为日志级别添加终端颜色
func colorize(level LogLevel, text string) string {
	const reset = "\033[0m"

	var color string
	switch level {
	case LogLevelTrace:
		color = "\033[90m"
	case LogLevelDebug:
		color = "\033[36m"
	case LogLevelInfo:
		color = "\033[32m"
	case LogLevelWarn:
		color = "\033[33m"
	case LogLevelError:
		color = "\033[31m"
	case LogLevelFatal:
		color = "\033[35m"
	default:
		return text
	}
	return color + text + reset
}
