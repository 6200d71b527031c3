package store

import (
	"errors"
	"fmt"
)

// NotFoundError：按 ID 操作时记录不存在
type NotFoundError struct{ ID string }

func (e *NotFoundError) Error() string { return fmt.Sprintf("tree %s not found", e.ID) }

// DuplicateIDError：新增记录的 ID 已存在（生成器下几乎不可达，契约仍保留）
type DuplicateIDError struct{ ID string }

func (e *DuplicateIDError) Error() string { return fmt.Sprintf("tree %s already exists", e.ID) }

// ValidationError：记录字段不合法（导入时按行吸收，不致命）
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrPersist：写入持久化槽位失败；内存中的修改保留，下一次成功写入会覆盖
var ErrPersist = errors.New("store: persist failed")

// IsNotFound 便捷判断
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
