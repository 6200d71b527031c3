// 包 capture：采集流程，把定位结果或标记测距转换为树木记录并写入仓库
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"olive-mapper/internal/logger"
	"olive-mapper/internal/metrics"
	"olive-mapper/internal/position"
	"olive-mapper/internal/stats"
	"olive-mapper/internal/store"
)

// ErrNoMarkerDetected：当前没有可用的标记测距
var ErrNoMarkerDetected = errors.New("no marker detected")

// DistanceSource：提供最近一次标记距离（由 marker.Estimator 实现）
type DistanceSource interface {
	LastDistance() (float64, bool)
}

// Flow：采集流程
type Flow struct {
	store    *store.Store
	stats    *stats.Engine
	provider position.Provider
	marker   DistanceSource
	timeout  time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// Option：采集流程选项
type Option func(*Flow)

// WithTimeout：单次定位等待上限
func WithTimeout(d time.Duration) Option { return func(f *Flow) { f.timeout = d } }

func WithClock(now func() time.Time) Option { return func(f *Flow) { f.now = now } }

// WithDistanceSource：标记测距来源；未设置时按标记采集总是返回 ErrNoMarkerDetected
func WithDistanceSource(d DistanceSource) Option { return func(f *Flow) { f.marker = d } }

// New：stats 可为 nil（不刷新统计）；provider 可为 nil（定位一律失败为不可用）
func New(st *store.Store, eng *stats.Engine, provider position.Provider, opts ...Option) *Flow {
	f := &Flow{
		store:    st,
		stats:    eng,
		provider: provider,
		timeout:  position.DefaultTimeout,
		now:      time.Now,
		log:      logger.Component("capture"),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// 文档注释：按给定定位结果采集
// 背景：精度字段取定位误差半径。
// 返回：写入的记录；持久化失败时记录仍在仓库中，同时返回包裹 store.ErrPersist 的错误。
func (f *Flow) CaptureFromLocation(ctx context.Context, fix position.Fix) (store.TreeRecord, error) {
	rec := store.NewRecord(fix.Latitude, fix.Longitude, fix.Accuracy, f.now())
	if err := f.commit(ctx, rec, "gps"); err != nil {
		return rec, err
	}
	f.log.Info("capture_ok", "id", rec.ID, "method", "gps", "accuracy", rec.Accuracy)
	return rec, nil
}

// CaptureCurrent：先获取一次定位（受超时约束），再按定位结果采集；定位失败返回 *position.Error
func (f *Flow) CaptureCurrent(ctx context.Context) (store.TreeRecord, error) {
	fix, err := position.LocateWithTimeout(ctx, f.provider, f.timeout)
	if err != nil {
		f.countPositionError(err)
		metrics.CapturesTotal.WithLabelValues("gps", "position_error").Inc()
		f.log.Warn("capture_position_error", "err", err)
		return store.TreeRecord{}, err
	}
	return f.CaptureFromLocation(ctx, fix)
}

// 文档注释：按标记测距采集
// 背景：精度字段存放的是相机测得的距离（米），来源标记为 camera，备注写入距离文本。
// 约束：
// - 没有最近距离时返回 ErrNoMarkerDetected，不创建记录；
// - 定位失败不视为整体失败：坐标记为 0/0，备注追加 (No GPS)。
func (f *Flow) CaptureFromMarker(ctx context.Context) (store.TreeRecord, error) {
	var (
		dist float64
		ok   bool
	)
	if f.marker != nil {
		dist, ok = f.marker.LastDistance()
	}
	if !ok {
		metrics.CapturesTotal.WithLabelValues("camera", "no_marker").Inc()
		return store.TreeRecord{}, ErrNoMarkerDetected
	}
	note := fmt.Sprintf("Camera distance: %.2fm", dist)
	var lat, lon float64
	fix, lerr := position.LocateWithTimeout(ctx, f.provider, f.timeout)
	if lerr != nil {
		f.countPositionError(lerr)
		f.log.Warn("capture_marker_no_gps", "err", lerr, "distance_m", dist)
		note += " (No GPS)"
	} else {
		lat, lon = fix.Latitude, fix.Longitude
	}
	rec := store.NewRecord(lat, lon, dist, f.now())
	rec.Notes = note
	rec.MeasurementMethod = store.MethodCamera
	if err := f.commit(ctx, rec, "camera"); err != nil {
		return rec, err
	}
	f.log.Info("capture_ok", "id", rec.ID, "method", "camera", "distance_m", dist, "gps", lerr == nil)
	return rec, nil
}

// commit：写入、持久化、刷新统计，顺序执行
func (f *Flow) commit(ctx context.Context, rec store.TreeRecord, method string) error {
	if err := f.store.Add(ctx, rec); err != nil {
		metrics.CapturesTotal.WithLabelValues(method, "rejected").Inc()
		return err
	}
	perr := f.store.Persist(ctx)
	if f.stats != nil {
		f.stats.Refresh(f.store.List())
	}
	if perr != nil {
		metrics.CapturesTotal.WithLabelValues(method, "persist_error").Inc()
		return perr
	}
	metrics.CapturesTotal.WithLabelValues(method, "ok").Inc()
	return nil
}

func (f *Flow) countPositionError(err error) {
	var pe *position.Error
	if errors.As(err, &pe) {
		metrics.PositioningErrorsTotal.WithLabelValues(pe.Kind.String()).Inc()
	}
}
