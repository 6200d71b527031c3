// 包 stats：树木集合的统计（数量、外接矩形面积、每公顷密度）
package stats

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"olive-mapper/internal/geomath"
	"olive-mapper/internal/metrics"
	"olive-mapper/internal/store"
)

// Unavailable：面积或密度无法给出时的展示文本
const Unavailable = "—"

// DefaultLocale：面积分组显示的缺省语言
const DefaultLocale = "el"

// MinRecords：计算面积所需的最少记录数
const MinRecords = 3

// Summary：一次统计结果；Available 为 false 表示“数据不足”，不是 0
type Summary struct {
	Count            int     `json:"count"`
	AreaAvailable    bool    `json:"areaAvailable"`
	AreaSquareMeters float64 `json:"areaSquareMeters"`
	AreaLabel        string  `json:"areaLabel"`
	DensityAvailable bool    `json:"densityAvailable"`
	Density          int     `json:"density"`
	DensityLabel     string  `json:"densityLabel"`
}

// Compute：使用缺省语言计算统计
func Compute(recs []store.TreeRecord) Summary {
	return compute(recs, message.NewPrinter(language.Make(DefaultLocale)))
}

// 文档注释：统计计算
// 背景：面积为外接矩形近似（非凸包），先取整到平方米再计算密度。
// 约束：少于 3 条记录时面积与密度均不可用；面积为 0（例如所有点重合）时密度不可用。
func compute(recs []store.TreeRecord, p *message.Printer) Summary {
	s := Summary{Count: len(recs), AreaLabel: Unavailable, DensityLabel: Unavailable}
	if len(recs) < MinRecords {
		return s
	}
	pts := make([]geomath.Point, len(recs))
	for i, r := range recs {
		pts[i] = geomath.Point{Lat: r.Latitude, Lon: r.Longitude}
	}
	s.AreaSquareMeters = math.Round(geomath.BoundingBoxArea(pts))
	s.AreaAvailable = true
	s.AreaLabel = formatArea(p, s.AreaSquareMeters)
	if d, ok := geomath.Density(s.Count, s.AreaSquareMeters); ok {
		s.Density = d
		s.DensityAvailable = true
		s.DensityLabel = fmt.Sprintf("%d", d)
	}
	return s
}

// formatArea：小于 1 公顷按语言分组显示平方米整数，否则显示两位小数的公顷
func formatArea(p *message.Printer, sqm float64) string {
	if sqm < 10000 {
		return p.Sprintf("%d", int64(sqm))
	}
	return fmt.Sprintf("%.2f ha", sqm/10000)
}

// 文档注释：统计引擎
// 背景：持有语言打印器与最近一次结果，每次刷新同时更新 Prometheus 仪表。
type Engine struct {
	printer *message.Printer
	mu      sync.RWMutex
	latest  Summary
}

// NewEngine：locale 为空时使用 DefaultLocale；无法识别的标签回退到 DefaultLocale
func NewEngine(locale string) *Engine {
	tag, err := language.Parse(locale)
	if locale == "" || err != nil {
		tag = language.Make(DefaultLocale)
	}
	return &Engine{
		printer: message.NewPrinter(tag),
		latest:  Summary{AreaLabel: Unavailable, DensityLabel: Unavailable},
	}
}

// Refresh：重新计算并发布
func (e *Engine) Refresh(recs []store.TreeRecord) Summary {
	s := compute(recs, e.printer)
	e.mu.Lock()
	e.latest = s
	e.mu.Unlock()
	metrics.TreesTotal.Set(float64(s.Count))
	metrics.AreaSquareMeters.Set(s.AreaSquareMeters)
	metrics.DensityPerHectare.Set(float64(s.Density))
	return s
}

// Latest：最近一次 Refresh 的结果
func (e *Engine) Latest() Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest
}
