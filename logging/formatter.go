package logging

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Formatter 把日志条目格式化为一行输出（以换行结尾）
type Formatter interface {
	Format(entry *LogEntry) ([]byte, error)
}

// LogEntry 日志条目
type LogEntry struct {
	Time     time.Time
	Level    LogLevel
	Category string
	Message  string
	Fields   []Field
}

// 格式化用的缓冲区，超过 64KB 的不回收
var buffers = sync.Pool{New: func() any { return new(bytes.Buffer) }}

func getBuffer() *bytes.Buffer {
	return buffers.Get().(*bytes.Buffer)
}

func putBuffer(b *bytes.Buffer) {
	if b.Cap() > 64<<10 {
		return
	}
	b.Reset()
	buffers.Put(b)
}

// fieldValue 统一字段值的表示：error 取消息，其余原样保留
func fieldValue(v any) any {
	switch val := v.(type) {
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	default:
		return v
	}
}

// quoteIfNeeded 含空白或分隔符的文本值加引号
func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n,={}\"") {
		return strconv.Quote(s)
	}
	return s
}
