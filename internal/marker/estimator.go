package marker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"olive-mapper/internal/logger"
	"olive-mapper/internal/metrics"
)

const (
	// DefaultInterval：采样周期
	DefaultInterval = 100 * time.Millisecond
	// DefaultMarkerSizeCm：标记实际边长缺省值（厘米）
	DefaultMarkerSizeCm = 20.0
)

// State：估距器状态
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Reading：最近一次有效测距
type Reading struct {
	Distance float64   `json:"distance"`
	MarkerID int       `json:"markerId"`
	At       time.Time `json:"at"`
}

// Option：估距器选项
type Option func(*Estimator)

// WithInterval：采样周期；d<=0 时不启动后台循环，由调用方驱动 Step
func WithInterval(d time.Duration) Option { return func(e *Estimator) { e.interval = d } }

// WithMarkerSizeCm：初始标记边长
func WithMarkerSizeCm(cm float64) Option { return func(e *Estimator) { e.sizeCm = sanitizeSize(cm) } }

// WithClock：测距时间来源
func WithClock(now func() time.Time) Option { return func(e *Estimator) { e.now = now } }

// 文档注释：标记测距状态机（Idle ⇄ Active）
// 背景：Active 期间按固定周期取帧并检测，第一个检测到的标记决定“最近距离”，供采集流程读取。
// 约束：
// - 检测能力缺失时 Start 失败，状态保持 Idle；相机打开失败同样保持 Idle；
// - tick 之间由互斥锁串行；检测出错只记录日志，状态与最近距离不变；取帧出错跳过本次 tick；
// - Stop 停止调度、关闭视频输入并清除最近距离；停止时仍在进行的 tick 结果按代号丢弃。
type Estimator struct {
	camera   Camera
	detector Detector
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger

	tickMu sync.Mutex

	mu     sync.Mutex
	state  State
	gen    uint64
	src    FrameSource
	cancel context.CancelFunc
	done   chan struct{}
	sizeCm float64
	last   *Reading
}

// NewEstimator：detector 可为 nil（此时 Start 返回 ErrCapabilityUnavailable）
func NewEstimator(camera Camera, detector Detector, opts ...Option) *Estimator {
	e := &Estimator{
		camera:   camera,
		detector: detector,
		interval: DefaultInterval,
		now:      time.Now,
		sizeCm:   DefaultMarkerSizeCm,
		log:      logger.Component("marker"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// heartbeater：可探活的检测器（远程检测服务）
type heartbeater interface {
	Heartbeat(ctx context.Context) error
}

// Start：确认检测能力可用后打开相机并进入 Active；已处于 Active 时为空操作
// 约束：检测器探活失败时返回 ErrCapabilityUnavailable，状态保持 Idle，相机不打开
func (e *Estimator) Start(ctx context.Context) error {
	if e.detector == nil {
		e.log.Warn("marker_capability_unavailable")
		return ErrCapabilityUnavailable
	}
	if e.camera == nil {
		return ErrNoCamera
	}
	e.mu.Lock()
	if e.state == Active {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()
	if hb, ok := e.detector.(heartbeater); ok {
		if err := hb.Heartbeat(ctx); err != nil {
			e.log.Warn("marker_capability_unavailable", "err", err)
			return fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
		}
	}

	src, err := e.camera.Open(ctx)
	if err != nil {
		e.log.Error("marker_camera_open_error", "err", err)
		return fmt.Errorf("open camera: %w", err)
	}

	e.mu.Lock()
	if e.state == Active {
		// 并发 Start 已先一步完成
		e.mu.Unlock()
		_ = src.Close()
		return nil
	}
	e.state = Active
	e.gen++
	e.src = src
	e.last = nil
	if e.interval > 0 {
		lctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		e.cancel = cancel
		e.done = make(chan struct{})
		go e.loop(lctx, e.done)
	}
	e.mu.Unlock()
	e.log.Info("marker_start", "interval_ms", e.interval.Milliseconds(), "size_cm", e.MarkerSizeCm())
	return nil
}

func (e *Estimator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(e.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = e.Step(ctx)
		}
	}
}

// Stop：回到 Idle；Idle 时为空操作
func (e *Estimator) Stop() error {
	e.mu.Lock()
	if e.state == Idle {
		e.mu.Unlock()
		return nil
	}
	e.state = Idle
	e.gen++
	e.last = nil
	src, cancel, done := e.src, e.cancel, e.done
	e.src, e.cancel, e.done = nil, nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	// 等待手动驱动的 tick 结束后再释放视频输入
	e.tickMu.Lock()
	err := src.Close()
	e.tickMu.Unlock()
	e.log.Info("marker_stop")
	return err
}

// 文档注释：执行一次采样
// 背景：后台循环每个周期调用一次；测试可在 WithInterval(0) 下直接调用以获得确定性的单步行为。
// 返回：Idle 时返回 ErrNotActive；取帧或检测失败返回对应错误（已记录日志，不改变状态）。
func (e *Estimator) Step(ctx context.Context) error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	t0 := time.Now()
	defer func() { metrics.MarkerTickDurationMs.Observe(float64(time.Since(t0).Microseconds()) / 1000) }()

	e.mu.Lock()
	if e.state != Active {
		e.mu.Unlock()
		return ErrNotActive
	}
	gen, src, sizeM := e.gen, e.src, e.sizeCm/100
	e.mu.Unlock()

	frame, err := src.Frame(ctx)
	if err != nil {
		metrics.MarkerTicksTotal.WithLabelValues("frame_error").Inc()
		e.log.Debug("marker_frame_error", "err", err)
		return fmt.Errorf("frame: %w", err)
	}
	found, err := e.detector.Detect(ctx, frame)
	if err != nil {
		metrics.MarkerTicksTotal.WithLabelValues("detect_error").Inc()
		e.log.Warn("marker_detect_error", "err", err)
		return fmt.Errorf("detect: %w", err)
	}

	var next *Reading
	if len(found) > 0 {
		// 仅取第一个标记，不做多标记融合
		if dist, ok := DistanceFromCorners(found[0].Corners, sizeM); ok {
			next = &Reading{Distance: dist, MarkerID: found[0].ID, At: e.now()}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen || e.state != Active {
		metrics.MarkerTicksTotal.WithLabelValues("discarded").Inc()
		return nil
	}
	e.last = next
	if next == nil {
		metrics.MarkerTicksTotal.WithLabelValues("none").Inc()
		return nil
	}
	metrics.MarkerTicksTotal.WithLabelValues("detected").Inc()
	e.log.Debug("marker_detected", "marker_id", next.MarkerID, "distance_m", next.Distance)
	return nil
}

// LastDistance：最近距离（米）；没有时 ok=false
func (e *Estimator) LastDistance() (float64, bool) {
	r, ok := e.Reading()
	return r.Distance, ok
}

// Reading：最近一次测距快照
func (e *Estimator) Reading() (Reading, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return Reading{}, false
	}
	return *e.last, true
}

func (e *Estimator) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Estimator) Active() bool { return e.State() == Active }

// SetMarkerSizeCm：设置标记边长；非正数或非有限数回退为 DefaultMarkerSizeCm，返回实际生效值
func (e *Estimator) SetMarkerSizeCm(cm float64) float64 {
	cm = sanitizeSize(cm)
	e.mu.Lock()
	e.sizeCm = cm
	e.mu.Unlock()
	return cm
}

func (e *Estimator) MarkerSizeCm() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sizeCm
}

func sanitizeSize(cm float64) float64 {
	if cm <= 0 || math.IsNaN(cm) || math.IsInf(cm, 0) {
		return DefaultMarkerSizeCm
	}
	return cm
}
