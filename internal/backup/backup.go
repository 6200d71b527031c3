// 包 backup：每日将树木集合导出为 GeoJSON 写入导出目标，运行在服务进程内的后台协程
package backup

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"olive-mapper/internal/codec"
	"olive-mapper/internal/logger"
	"olive-mapper/internal/metrics"
	"olive-mapper/internal/sink"
	"olive-mapper/internal/store"
)

// DefaultHour：缺省执行时刻（本地时间整点）
const DefaultHour = 3

// nextDailyAt：计算下一次指定小时的时间点（今天已过则顺延到明天）
// 约束：基于 now 所在时区与整点 hour；只返回严格晚于 now 的时间
func nextDailyAt(now time.Time, hour int) time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// HourFromEnv：读取 BACKUP_HOUR，非法或越界时返回 DefaultHour
func HourFromEnv() int {
	if h := os.Getenv("BACKUP_HOUR"); h != "" {
		if n, err := strconv.Atoi(h); err == nil && n >= 0 && n < 24 {
			return n
		}
	}
	return DefaultHour
}

// 文档注释：执行一次备份
// 约束：集合为空时跳过（返回空位置与 nil）；文件名与手动导出一致。
func RunOnce(ctx context.Context, st *store.Store, dst sink.Sink, now time.Time) (string, error) {
	data, ct, err := codec.Export(codec.FormatGeoJSON, st.List())
	if errors.Is(err, codec.ErrNothingToExport) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	loc, err := dst.Write(ctx, codec.ExportFilename(codec.FormatGeoJSON, now), ct, data)
	if err != nil {
		return "", err
	}
	metrics.ExportsTotal.WithLabelValues(string(codec.FormatGeoJSON), "backup").Inc()
	return loc, nil
}

// StartDaily：每天 hour 点执行一次备份
// 背景：错误由日志记录，任务继续调度；ctx 结束时退出
func StartDaily(ctx context.Context, st *store.Store, dst sink.Sink, hour int) {
	l := logger.Component("backup")
	next := nextDailyAt(time.Now(), hour)
	l.Info("backup_scheduled", "next", next)
	go func() {
		for {
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			l.Info("backup_start", "next", next)
			if loc, err := RunOnce(ctx, st, dst, time.Now()); err != nil {
				l.Error("backup_error", "err", err)
			} else if loc == "" {
				l.Info("backup_skipped_empty")
			} else {
				l.Info("backup_done", "location", loc)
			}
			next = nextDailyAt(time.Now(), hour)
		}
	}()
}
