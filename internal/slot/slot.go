// 包 slot：持久化槽位（durable slot），按键保存整段序列化文本；驱动可选 sqlite/file/postgres/redis/memory
package slot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"olive-mapper/internal/logger"
)

// 槽位键：记录集合、主题偏好、安装提示关闭标记
const (
	KeyTrees                  = "oliveTrees"
	KeyTheme                  = "theme"
	KeyInstallPromptDismissed = "installPromptDismissed"
)

// ErrNotFound：键不存在（视为“无历史数据”，不是故障）
var ErrNotFound = errors.New("slot: key not found")

// 文档注释：持久化槽位接口
// 约束：Save 为整值覆盖写（不追加）；并发安全由实现保证；Load 在键缺失时返回 ErrNotFound。
type Slot interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// Driver 标识槽位后端
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverFile     Driver = "file"
	DriverPostgres Driver = "postgres"
	DriverRedis    Driver = "redis"
	DriverMemory   Driver = "memory"
)

// 文档注释：按环境变量选择并打开槽位
// 背景：SLOT_DRIVER 缺省为 sqlite（单机设备最常见）；各驱动自身参数见对应文件。
func Open(ctx context.Context) (Slot, error) {
	d := Driver(strings.ToLower(os.Getenv("SLOT_DRIVER")))
	if d == "" {
		d = DriverSQLite
	}
	logger.L().Debug("slot_open", "driver", d)
	switch d {
	case DriverSQLite:
		return OpenSQLite(ctx, os.Getenv("SLOT_SQLITE_PATH"))
	case DriverFile:
		return NewFile(os.Getenv("SLOT_FILE_DIR"))
	case DriverPostgres:
		return OpenPostgresFromEnv(ctx)
	case DriverRedis:
		return OpenRedisFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown slot driver %q", d)
	}
}
