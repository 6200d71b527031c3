package codec

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"olive-mapper/internal/logger"
	"olive-mapper/internal/metrics"
	"olive-mapper/internal/store"
)

// Format：交换格式
type Format string

const (
	FormatCSV     Format = "csv"
	FormatGeoJSON Format = "geojson"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrNoValidRecords    = errors.New("no valid records found")
	ErrInvalidGeoJSON    = errors.New("invalid GeoJSON document")
	ErrNothingToExport   = errors.New("no records to export")
)

// Result：一次解析的结果；Skipped 为未通过校验而丢弃的行/要素数
type Result struct {
	Records []store.TreeRecord
	Skipped int
}

// ParseFormat：接受 csv、geojson 与 json（json 视为 geojson）
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "geojson", "json":
		return FormatGeoJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatFromFilename：按扩展名判定格式（.csv；.json/.geojson）
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".json", ".geojson":
		return FormatGeoJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// ContentType：导出文件的 MIME 类型
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/geo+json"
}

// ExportFilename：olive-trees-<YYYY-MM-DD>.<csv|geojson>
func ExportFilename(f Format, now time.Time) string {
	return fmt.Sprintf("olive-trees-%s.%s", now.Format("2006-01-02"), string(f))
}

// Decode：按格式解析，不修改仓库
func Decode(f Format, data []byte, now time.Time) (Result, error) {
	switch f {
	case FormatCSV:
		return DecodeCSV(data, now)
	case FormatGeoJSON:
		return DecodeGeoJSON(data, now)
	}
	return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
}

// 文档注释：导出当前集合
// 约束：空集合返回 ErrNothingToExport；返回内容与 MIME 类型。
func Export(f Format, recs []store.TreeRecord) ([]byte, string, error) {
	if len(recs) == 0 {
		return nil, "", ErrNothingToExport
	}
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatCSV:
		data = EncodeCSV(recs)
	case FormatGeoJSON:
		data, err = EncodeGeoJSON(recs)
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
	if err != nil {
		return nil, "", err
	}
	return data, f.ContentType(), nil
}

// 文档注释：导入文件到仓库
// 背景：按文件扩展名分派解析器，有效记录作为一批追加后整体持久化。
// 约束：
// - 单行/单要素校验失败只计数不报错；全部无效时返回 ErrNoValidRecords 且仓库不变；
// - 持久化失败时记录仍保留在内存中，错误包裹 store.ErrPersist 返回。
func Import(ctx context.Context, st *store.Store, filename string, data []byte, now time.Time) (Result, error) {
	log := logger.Component("codec")
	f, err := FormatFromFilename(filename)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues("unknown", "unsupported").Inc()
		log.Warn("import_unsupported", "filename", filename)
		return Result{}, err
	}
	res, err := Decode(f, data, now)
	if res.Skipped > 0 {
		metrics.ImportRowsSkippedTotal.WithLabelValues(string(f)).Add(float64(res.Skipped))
	}
	if err != nil {
		metrics.ImportsTotal.WithLabelValues(string(f), "rejected").Inc()
		log.Warn("import_rejected", "filename", filename, "format", f, "skipped", res.Skipped, "err", err)
		return res, err
	}
	if err := st.AddBatch(ctx, res.Records); err != nil {
		metrics.ImportsTotal.WithLabelValues(string(f), "rejected").Inc()
		return res, err
	}
	metrics.ImportsTotal.WithLabelValues(string(f), "ok").Inc()
	log.Info("import_ok", "filename", filename, "format", f, "imported", len(res.Records), "skipped", res.Skipped)
	return res, st.Persist(ctx)
}
