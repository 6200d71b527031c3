package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TreesTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "olive_trees",
		Help: "Number of tree records currently in the store",
	})
	AreaSquareMeters = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "olive_area_square_meters",
		Help: "Bounding-box area of the recorded trees (0 when unavailable)",
	})
	DensityPerHectare = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "olive_density_trees_per_hectare",
		Help: "Tree density per hectare (0 when unavailable)",
	})
	CapturesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "olive_captures_total",
		Help: "Tree captures by method (gps, camera) and outcome",
	}, []string{"method", "outcome"})
	PositioningErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "olive_positioning_errors_total",
		Help: "Location fix failures by kind",
	}, []string{"kind"})
	ImportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "olive_imports_total",
		Help: "Import attempts by format and result",
	}, []string{"format", "result"})
	ImportRowsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "olive_import_rows_skipped_total",
		Help: "Rows or features dropped during import validation",
	}, []string{"format"})
	ExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "olive_exports_total",
		Help: "Exports by format and destination",
	}, []string{"format", "dest"})
	PersistErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "olive_persist_errors_total",
		Help: "Failed writes of the record collection to the durable slot",
	})
	MarkerTicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "olive_marker_ticks_total",
		Help: "Marker sampling ticks by result (detected, none, frame_error, detect_error, discarded)",
	}, []string{"result"})
	MarkerTickDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "olive_marker_tick_duration_ms",
		Help:    "Duration of one marker sampling tick in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500},
	})
	HTTPDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "olive_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds by method and status class",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"method", "class"})
)

func init() {
	prometheus.MustRegister(TreesTotal)
	prometheus.MustRegister(AreaSquareMeters)
	prometheus.MustRegister(DensityPerHectare)
	prometheus.MustRegister(CapturesTotal)
	prometheus.MustRegister(PositioningErrorsTotal)
	prometheus.MustRegister(ImportsTotal)
	prometheus.MustRegister(ImportRowsSkippedTotal)
	prometheus.MustRegister(ExportsTotal)
	prometheus.MustRegister(PersistErrorsTotal)
	prometheus.MustRegister(MarkerTicksTotal)
	prometheus.MustRegister(MarkerTickDurationMs)
	prometheus.MustRegister(HTTPDurationMs)
}

// 文档注释：返回 Prometheus 指标处理器
// 背景：在主入口挂载到 <API_BASE>/metrics，供抓取捕获、导入与测距循环的运行情况。
func Handler() http.Handler { return promhttp.Handler() }
