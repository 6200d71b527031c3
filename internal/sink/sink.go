// 包 sink：导出文件的落地目标（本地目录、S3 兼容对象存储、内存）
package sink

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Sink：写入一份导出文件，返回可读的位置描述
type Sink interface {
	Write(ctx context.Context, name, contentType string, data []byte) (string, error)
}

const (
	DriverFS     = "fs"
	DriverS3     = "s3"
	DriverMemory = "memory"
)

// Open：按 EXPORT_DRIVER 选择实现（缺省 fs）
func Open(ctx context.Context) (Sink, error) {
	switch d := strings.ToLower(strings.TrimSpace(os.Getenv("EXPORT_DRIVER"))); d {
	case "", DriverFS:
		return NewFS(os.Getenv("EXPORT_DIR")), nil
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown EXPORT_DRIVER %q", d)
	}
}

// Memory：内存实现（测试）
type Memory struct {
	mu    sync.Mutex
	files map[string][]byte
	types map[string]string
}

func NewMemory() *Memory {
	return &Memory{files: map[string][]byte{}, types: map[string]string{}}
}

func (m *Memory) Write(_ context.Context, name, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append([]byte(nil), data...)
	m.types[name] = contentType
	return "memory://" + name, nil
}

// Get：读取已写入的文件
func (m *Memory) Get(name string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[name]
	return b, m.types[name], ok
}
