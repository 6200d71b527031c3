// 包 position：定位能力抽象（获取一次位置修正），供采集流程调用
package position

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout：单次定位的等待上限
const DefaultTimeout = 10 * time.Second

// Fix：一次位置修正；Accuracy 为误差半径（米）
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Time      time.Time `json:"time"`
}

// Kind：定位失败类别
type Kind int

const (
	PermissionDenied Kind = iota + 1
	Unavailable
	Timeout
)

func (k Kind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case Unavailable:
		return "unavailable"
	case Timeout:
		return "timeout"
	}
	return "unknown"
}

// Error：定位失败，Message 为面向用户的短句
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("positioning %s: %v", e.Kind, e.Err)
	}
	return "positioning " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Message：用户提示
func (e *Error) Message() string {
	switch e.Kind {
	case PermissionDenied:
		return "Please enable location permissions"
	case Timeout:
		return "GPS timed out"
	}
	return "Location is not available"
}

// Provider：定位能力
type Provider interface {
	Locate(ctx context.Context) (Fix, error)
}

// 文档注释：带超时的定位
// 约束：d<=0 时使用 DefaultTimeout；提供者不响应 ctx 时也在 d 到期后返回；超时统一转换为 Kind=Timeout，其他非 *Error 错误归为 Unavailable。
func LocateWithTimeout(ctx context.Context, p Provider, d time.Duration) (Fix, error) {
	if p == nil {
		return Fix{}, &Error{Kind: Unavailable, Err: errors.New("no position provider configured")}
	}
	if d <= 0 {
		d = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	type result struct {
		fix Fix
		err error
	}
	ch := make(chan result, 1)
	go func() {
		fix, err := p.Locate(cctx)
		ch <- result{fix, err}
	}()
	var fix Fix
	var err error
	select {
	case r := <-ch:
		fix, err = r.fix, r.err
	case <-cctx.Done():
		err = cctx.Err()
	}
	if err == nil {
		return fix, nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return Fix{}, pe
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return Fix{}, &Error{Kind: Timeout, Err: err}
	}
	return Fix{}, &Error{Kind: Unavailable, Err: err}
}

// Static：固定位置或固定错误（测试与固定安装点使用）
type Static struct {
	Fix Fix
	Err error
}

func (s Static) Locate(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	if s.Err != nil {
		return Fix{}, s.Err
	}
	f := s.Fix
	if f.Time.IsZero() {
		f.Time = time.Now()
	}
	return f, nil
}
