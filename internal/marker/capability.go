package marker

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrCapabilityUnavailable：检测能力未安装，无法进入采样状态
	ErrCapabilityUnavailable = errors.New("marker detection capability unavailable")
	// ErrNoCamera：未配置相机
	ErrNoCamera = errors.New("no camera configured")
	// ErrNotActive：估距器处于空闲状态
	ErrNotActive = errors.New("marker estimator is not active")
)

// Camera：打开一路视频输入
type Camera interface {
	Open(ctx context.Context) (FrameSource, error)
}

// FrameSource：已打开的视频输入，按需取当前帧
type FrameSource interface {
	Frame(ctx context.Context) (*image.RGBA, error)
	Close() error
}

// Detector：标记检测能力
type Detector interface {
	Detect(ctx context.Context, frame *image.RGBA) ([]Detection, error)
}

// DetectorFunc：函数适配
type DetectorFunc func(ctx context.Context, frame *image.RGBA) ([]Detection, error)

func (f DetectorFunc) Detect(ctx context.Context, frame *image.RGBA) ([]Detection, error) {
	return f(ctx, frame)
}
