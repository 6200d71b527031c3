// 包 api：对展示层暴露登记、统计、导入导出、测距与偏好接口
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"olive-mapper/internal/capture"
	"olive-mapper/internal/codec"
	"olive-mapper/internal/geomath"
	"olive-mapper/internal/logger"
	"olive-mapper/internal/marker"
	"olive-mapper/internal/metrics"
	"olive-mapper/internal/position"
	"olive-mapper/internal/prefs"
	"olive-mapper/internal/sink"
	"olive-mapper/internal/stats"
	"olive-mapper/internal/store"
)

// MaxImportBytes：导入请求体上限
const MaxImportBytes = 32 << 20

// DefaultClusterPrecision：聚类接口缺省 geohash 精度（约 150m 见方）
const DefaultClusterPrecision = 7

// Deps：路由依赖；Estimator 与 Sink 可为 nil
type Deps struct {
	Store     *store.Store
	Stats     *stats.Engine
	Capture   *capture.Flow
	Estimator *marker.Estimator
	Prefs     *prefs.Prefs
	Sink      sink.Sink
	Now       func() time.Time
}

type server struct {
	Deps
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 API_BASE 前缀
func BuildRoutes(d Deps) *http.ServeMux {
	if d.Now == nil {
		d.Now = time.Now
	}
	s := &server{Deps: d}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /trees", s.listTrees)
	mux.HandleFunc("DELETE /trees", s.clearTrees)
	mux.HandleFunc("GET /trees/{id}", s.getTree)
	mux.HandleFunc("PATCH /trees/{id}", s.editTree)
	mux.HandleFunc("DELETE /trees/{id}", s.removeTree)
	mux.HandleFunc("POST /trees/capture", s.capture)
	mux.HandleFunc("POST /trees/capture/marker", s.captureMarker)

	mux.HandleFunc("GET /stats", s.stats)
	mux.HandleFunc("GET /clusters", s.clusters)

	mux.HandleFunc("GET /export/{format}", s.export)
	mux.HandleFunc("POST /export/{format}/sink", s.exportToSink)
	mux.HandleFunc("POST /import", s.importFile)

	mux.HandleFunc("POST /camera/start", s.cameraStart)
	mux.HandleFunc("POST /camera/stop", s.cameraStop)
	mux.HandleFunc("GET /camera", s.cameraState)
	mux.HandleFunc("PUT /camera/marker-size", s.cameraMarkerSize)
	mux.HandleFunc("GET /marker/{id}", s.markerSVG)

	mux.HandleFunc("GET /prefs/theme", s.getTheme)
	mux.HandleFunc("PUT /prefs/theme", s.putTheme)
	mux.HandleFunc("POST /prefs/theme/toggle", s.toggleTheme)
	mux.HandleFunc("GET /prefs/install-prompt", s.getInstallPrompt)
	mux.HandleFunc("POST /prefs/install-prompt", s.dismissInstallPrompt)
	return mux
}

func (s *server) listTrees(w http.ResponseWriter, r *http.Request) {
	recs := s.Store.List()
	if r.URL.Query().Get("sort") == "recent" {
		recs = store.SortByRecency(recs)
	}
	if recs == nil {
		recs = []store.TreeRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *server) getTree(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok := s.Store.Get(id)
	if !ok {
		writeError(w, r, &store.NotFoundError{ID: id})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// 文档注释：编辑备注与品种
// 约束：请求体中缺省的字段保持原值；其他字段不可编辑。
func (s *server) editTree(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if _, err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.Store.Update(r.Context(), r.PathValue("id"), func(e *store.Editable) {
		if req.Notes != nil {
			e.Notes = *req.Notes
		}
		if req.Variety != nil {
			e.Variety = *req.Variety
		}
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.refresh()
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) removeTree(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Store.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	s.refresh()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) clearTrees(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Clear(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	s.refresh()
	w.WriteHeader(http.StatusNoContent)
}

// 文档注释：按定位采集
// 背景：请求体携带设备定位时直接采用；请求体为空时向服务端配置的定位提供者请求一次定位。
func (s *server) capture(w http.ResponseWriter, r *http.Request) {
	var req fixRequest
	present, err := decodeBody(r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var rec store.TreeRecord
	switch {
	case !present:
		rec, err = s.Capture.CaptureCurrent(r.Context())
	case req.Latitude == nil || req.Longitude == nil:
		err = fmt.Errorf("%w: latitude and longitude are required", errBadRequest)
	default:
		rec, err = s.Capture.CaptureFromLocation(r.Context(), position.Fix{
			Latitude: *req.Latitude, Longitude: *req.Longitude, Accuracy: req.Accuracy, Time: s.Now(),
		})
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *server) captureMarker(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Capture.CaptureFromMarker(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.refresh())
}

func (s *server) clusters(w http.ResponseWriter, r *http.Request) {
	precision := DefaultClusterPrecision
	if v := r.URL.Query().Get("precision"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			writeError(w, r, fmt.Errorf("%w: precision must be 1..12", errBadRequest))
			return
		}
		precision = n
	}
	recs := s.Store.List()
	pts := make([]geomath.Point, len(recs))
	for i, rec := range recs {
		pts[i] = geomath.Point{Lat: rec.Latitude, Lon: rec.Longitude}
	}
	cells := geomath.Cells(pts, precision)
	if cells == nil {
		cells = []geomath.Cell{}
	}
	writeJSON(w, http.StatusOK, cells)
}

func (s *server) export(w http.ResponseWriter, r *http.Request) {
	f, err := codec.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, ct, err := codec.Export(f, s.Store.List())
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.ExportsTotal.WithLabelValues(string(f), "download").Inc()
	w.Header().Set("content-type", ct)
	w.Header().Set("content-disposition", fmt.Sprintf(`attachment; filename="%s"`, codec.ExportFilename(f, s.Now())))
	w.Header().Set("cache-control", "no-store")
	_, _ = w.Write(data)
}

func (s *server) exportToSink(w http.ResponseWriter, r *http.Request) {
	if s.Sink == nil {
		writeError(w, r, errNoSink)
		return
	}
	f, err := codec.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, ct, err := codec.Export(f, s.Store.List())
	if err != nil {
		writeError(w, r, err)
		return
	}
	loc, err := s.Sink.Write(r.Context(), codec.ExportFilename(f, s.Now()), ct, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.ExportsTotal.WithLabelValues(string(f), "sink").Inc()
	logger.L().Info("export_sink_ok", "format", f, "location", loc, "bytes", len(data))
	writeJSON(w, http.StatusOK, map[string]string{"location": loc})
}

// 文档注释：导入文件
// 约束：文件名通过查询参数 filename 传递并决定格式；请求体为文件原文。
func (s *server) importFile(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("filename")
	if name == "" {
		writeError(w, r, fmt.Errorf("%w: filename is required", errBadRequest))
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxImportBytes))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	res, err := codec.Import(r.Context(), s.Store, name, data, s.Now())
	if err != nil && !errors.Is(err, store.ErrPersist) {
		writeError(w, r, err)
		return
	}
	s.refresh()
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, _ := codec.FormatFromFilename(name)
	writeJSON(w, http.StatusOK, importResponse{Format: string(f), Imported: len(res.Records), Skipped: res.Skipped})
}

func (s *server) cameraStart(w http.ResponseWriter, r *http.Request) {
	if s.Estimator == nil {
		writeError(w, r, marker.ErrCapabilityUnavailable)
		return
	}
	if err := s.Estimator.Start(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cameraSnapshot())
}

func (s *server) cameraStop(w http.ResponseWriter, r *http.Request) {
	if s.Estimator != nil {
		if err := s.Estimator.Stop(); err != nil {
			logger.L().Warn("camera_stop_error", "err", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) cameraState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cameraSnapshot())
}

func (s *server) cameraMarkerSize(w http.ResponseWriter, r *http.Request) {
	if s.Estimator == nil {
		writeError(w, r, marker.ErrCapabilityUnavailable)
		return
	}
	var req markerSizeRequest
	if _, err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.Estimator.SetMarkerSizeCm(req.SizeCm)
	writeJSON(w, http.StatusOK, s.cameraSnapshot())
}

func (s *server) cameraSnapshot() cameraResponse {
	if s.Estimator == nil {
		return cameraResponse{State: marker.Idle.String(), MarkerSizeCm: marker.DefaultMarkerSizeCm}
	}
	out := cameraResponse{State: s.Estimator.State().String(), MarkerSizeCm: s.Estimator.MarkerSizeCm()}
	if rd, ok := s.Estimator.Reading(); ok {
		out.Distance, out.MarkerID, out.At = &rd.Distance, &rd.MarkerID, &rd.At
	}
	return out
}

func (s *server) markerSVG(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		id = 0
	}
	size := marker.DefaultMarkerSizeCm
	if s.Estimator != nil {
		size = s.Estimator.MarkerSizeCm()
	}
	if v := r.URL.Query().Get("sizeCm"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			size = n
		}
	}
	svg, used := marker.PatternSVG(id, size)
	w.Header().Set("content-type", "image/svg+xml")
	w.Header().Set("content-disposition", fmt.Sprintf(`attachment; filename="%s"`, marker.PatternFilename(used)))
	_, _ = io.WriteString(w, svg)
}

func (s *server) getTheme(w http.ResponseWriter, r *http.Request) {
	th, err := s.Prefs.Theme(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, themeBody{Theme: th})
}

func (s *server) putTheme(w http.ResponseWriter, r *http.Request) {
	var req themeBody
	if _, err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Prefs.SetTheme(r.Context(), req.Theme); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *server) toggleTheme(w http.ResponseWriter, r *http.Request) {
	th, err := s.Prefs.ToggleTheme(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, themeBody{Theme: th})
}

func (s *server) getInstallPrompt(w http.ResponseWriter, r *http.Request) {
	d, err := s.Prefs.InstallPromptDismissed(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, installPromptBody{Dismissed: d})
}

func (s *server) dismissInstallPrompt(w http.ResponseWriter, r *http.Request) {
	if err := s.Prefs.DismissInstallPrompt(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, installPromptBody{Dismissed: true})
}

// refresh：重新计算统计并发布指标；未配置统计引擎时即时计算
func (s *server) refresh() stats.Summary {
	if s.Stats == nil {
		return stats.Compute(s.Store.List())
	}
	return s.Stats.Refresh(s.Store.List())
}
