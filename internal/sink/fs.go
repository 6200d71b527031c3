package sink

import (
	"context"
	"os"
	"path/filepath"
)

// FS：写入本地目录（缺省 data/exports），同名文件覆盖
type FS struct{ dir string }

func NewFS(dir string) *FS {
	if dir == "" {
		dir = filepath.Join("data", "exports")
	}
	return &FS{dir: dir}
}

// 文档注释：原子写入
// 约束：先写临时文件并 fsync，再 rename 覆盖目标，读者不会看到半个文件。
func (f *FS) Write(_ context.Context, name, _ string, data []byte) (string, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(f.dir, filepath.Base(name))
	tmp, err := os.CreateTemp(f.dir, ".export-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	return dst, nil
}
