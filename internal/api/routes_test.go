package api

import (
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"olive-mapper/internal/capture"
	"olive-mapper/internal/marker"
	"olive-mapper/internal/position"
	"olive-mapper/internal/prefs"
	"olive-mapper/internal/sink"
	"olive-mapper/internal/slot"
	"olive-mapper/internal/stats"
	"olive-mapper/internal/store"
)

var fixedNow = time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	srv   *httptest.Server
	store *store.Store
	est   *marker.Estimator
	sink  *sink.Memory
}

func newEnv(t *testing.T, provider position.Provider, det marker.Detector) *testEnv {
	t.Helper()
	sl := slot.NewMemory()
	st := store.New(sl)
	eng := stats.NewEngine("en")
	est := marker.NewEstimator(&marker.StaticCamera{}, det, marker.WithInterval(0))
	flow := capture.New(st, eng, provider, capture.WithDistanceSource(est), capture.WithClock(func() time.Time { return fixedNow }))
	mem := sink.NewMemory()
	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", BuildRoutes(Deps{
		Store: st, Stats: eng, Capture: flow, Estimator: est, Prefs: prefs.New(sl), Sink: mem,
		Now: func() time.Time { return fixedNow },
	})))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: st, est: est, sink: mem}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+"/api"+path, rd)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func TestTreeLifecycle(t *testing.T) {
	e := newEnv(t, nil, nil)
	resp, body := e.do(t, http.MethodPost, "/trees/capture", `{"latitude":37.0,"longitude":22.0,"accuracy":4}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("capture: %d %s", resp.StatusCode, body)
	}
	var rec store.TreeRecord
	if err := json.Unmarshal(body, &rec); err != nil || rec.ID == "" {
		t.Fatalf("decode: %v %s", err, body)
	}

	resp, body = e.do(t, http.MethodPatch, "/trees/"+rec.ID, `{"notes":" by the gate ","variety":"Koroneiki"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit: %d %s", resp.StatusCode, body)
	}
	var edited store.TreeRecord
	_ = json.Unmarshal(body, &edited)
	if edited.Notes != "by the gate" || edited.Variety != "Koroneiki" || edited.Latitude != 37 {
		t.Fatalf("edited %+v", edited)
	}

	resp, _ = e.do(t, http.MethodGet, "/trees/"+rec.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: %d", resp.StatusCode)
	}
	resp, body = e.do(t, http.MethodPatch, "/trees/missing", `{"notes":"x"}`)
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(string(body), "missing") {
		t.Fatalf("edit missing: %d %s", resp.StatusCode, body)
	}

	resp, _ = e.do(t, http.MethodDelete, "/trees/"+rec.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodDelete, "/trees/"+rec.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("second delete should be idempotent: %d", resp.StatusCode)
	}
	resp, body = e.do(t, http.MethodGet, "/trees", "")
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("list: %d %s", resp.StatusCode, body)
	}
}

func TestCaptureWithProviderErrors(t *testing.T) {
	e := newEnv(t, position.Static{Err: &position.Error{Kind: position.PermissionDenied}}, nil)
	resp, body := e.do(t, http.MethodPost, "/trees/capture", "")
	if resp.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(string(body), "location permissions") {
		t.Fatalf("capture: %d %s", resp.StatusCode, body)
	}
	resp, _ = e.do(t, http.MethodPost, "/trees/capture", `{"accuracy":3}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing coordinates: %d", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodPost, "/trees/capture/marker", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("marker capture without reading: %d", resp.StatusCode)
	}
}

func TestStatsAndClusters(t *testing.T) {
	e := newEnv(t, nil, nil)
	for _, p := range []string{
		`{"latitude":37.0,"longitude":22.0}`,
		`{"latitude":37.001,"longitude":22.0}`,
		`{"latitude":37.0,"longitude":22.001}`,
	} {
		if resp, body := e.do(t, http.MethodPost, "/trees/capture", p); resp.StatusCode != http.StatusCreated {
			t.Fatalf("capture: %d %s", resp.StatusCode, body)
		}
	}
	_, body := e.do(t, http.MethodGet, "/stats", "")
	var s stats.Summary
	if err := json.Unmarshal(body, &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Count != 3 || s.Density != 3 || !s.AreaAvailable {
		t.Fatalf("stats %+v", s)
	}
	resp, body := e.do(t, http.MethodGet, "/clusters?precision=5", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"count":3`) {
		t.Fatalf("clusters: %d %s", resp.StatusCode, body)
	}
	resp, _ = e.do(t, http.MethodGet, "/clusters?precision=40", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad precision: %d", resp.StatusCode)
	}
}

func TestImportExport(t *testing.T) {
	e := newEnv(t, nil, nil)
	resp, _ := e.do(t, http.MethodGet, "/export/csv", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("empty export: %d", resp.StatusCode)
	}
	resp, body := e.do(t, http.MethodPost, "/import?filename=trees.csv", "ID,Lat,Lng,Acc,Ts\n1,37.5,22.5,5,2024-01-01T00:00:00Z\n2,x,y,1,z\n")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"imported":1`) || !strings.Contains(string(body), `"skipped":1`) {
		t.Fatalf("import: %d %s", resp.StatusCode, body)
	}
	resp, _ = e.do(t, http.MethodPost, "/import?filename=trees.kml", "<kml/>")
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("unsupported import: %d", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodPost, "/import?filename=trees.geojson", `{"type":"FeatureCollection"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid geojson: %d", resp.StatusCode)
	}

	resp, body = e.do(t, http.MethodGet, "/export/geojson", "")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("content-type") != "application/geo+json" {
		t.Fatalf("export: %d %q", resp.StatusCode, resp.Header.Get("content-type"))
	}
	if !strings.Contains(resp.Header.Get("content-disposition"), "olive-trees-2024-07-01.geojson") {
		t.Fatalf("disposition %q", resp.Header.Get("content-disposition"))
	}
	if !strings.Contains(string(body), "[\n          22.5,\n          37.5\n        ]") {
		t.Fatalf("coordinates not [lon, lat]:\n%s", body)
	}

	resp, body = e.do(t, http.MethodPost, "/export/csv/sink", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "memory://olive-trees-2024-07-01.csv") {
		t.Fatalf("sink export: %d %s", resp.StatusCode, body)
	}
	if _, _, ok := e.sink.Get("olive-trees-2024-07-01.csv"); !ok {
		t.Fatalf("sink not written")
	}
	resp, _ = e.do(t, http.MethodGet, "/export/kml", "")
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("unknown export format: %d", resp.StatusCode)
	}
}

func TestCameraFlow(t *testing.T) {
	det := marker.DetectorFunc(func(context.Context, *image.RGBA) ([]marker.Detection, error) {
		return []marker.Detection{{ID: 0, Corners: []marker.Corner{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}}}, nil
	})
	e := newEnv(t, position.Static{Err: &position.Error{Kind: position.Unavailable}}, det)

	resp, body := e.do(t, http.MethodPost, "/camera/start", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"state":"active"`) {
		t.Fatalf("start: %d %s", resp.StatusCode, body)
	}
	resp, body = e.do(t, http.MethodPut, "/camera/marker-size", `{"sizeCm":30}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"markerSizeCm":30`) {
		t.Fatalf("marker size: %d %s", resp.StatusCode, body)
	}
	if err := e.est.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	_, body = e.do(t, http.MethodGet, "/camera", "")
	if !strings.Contains(string(body), `"distance":3`) {
		t.Fatalf("camera state %s", body)
	}
	resp, body = e.do(t, http.MethodPost, "/trees/capture/marker", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("marker capture: %d %s", resp.StatusCode, body)
	}
	var rec store.TreeRecord
	_ = json.Unmarshal(body, &rec)
	if rec.Notes != "Camera distance: 3.00m (No GPS)" || rec.MeasurementMethod != store.MethodCamera {
		t.Fatalf("record %+v", rec)
	}
	resp, _ = e.do(t, http.MethodPost, "/camera/stop", "")
	if resp.StatusCode != http.StatusNoContent || e.est.Active() {
		t.Fatalf("stop: %d", resp.StatusCode)
	}
}

func TestCameraWithoutDetector(t *testing.T) {
	e := newEnv(t, nil, nil)
	resp, _ := e.do(t, http.MethodPost, "/camera/start", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("start: %d", resp.StatusCode)
	}
	resp, body := e.do(t, http.MethodGet, "/marker/1?sizeCm=15", "")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("content-type") != "image/svg+xml" ||
		!strings.Contains(string(body), "Size: 15cm") {
		t.Fatalf("marker svg: %d %s", resp.StatusCode, body)
	}
	if !strings.Contains(resp.Header.Get("content-disposition"), "aruco-marker-1.svg") {
		t.Fatalf("disposition %q", resp.Header.Get("content-disposition"))
	}
}

func TestPrefsRoutes(t *testing.T) {
	e := newEnv(t, nil, nil)
	_, body := e.do(t, http.MethodGet, "/prefs/theme", "")
	if !strings.Contains(string(body), `"theme":"light"`) {
		t.Fatalf("default theme %s", body)
	}
	_, body = e.do(t, http.MethodPost, "/prefs/theme/toggle", "")
	if !strings.Contains(string(body), `"theme":"dark"`) {
		t.Fatalf("toggle %s", body)
	}
	resp, _ := e.do(t, http.MethodPut, "/prefs/theme", `{"theme":"sepia"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid theme: %d", resp.StatusCode)
	}
	_, body = e.do(t, http.MethodPost, "/prefs/install-prompt", "")
	if !strings.Contains(string(body), `"dismissed":true`) {
		t.Fatalf("dismiss %s", body)
	}
	_, body = e.do(t, http.MethodGet, "/prefs/install-prompt", "")
	if !strings.Contains(string(body), `"dismissed":true`) {
		t.Fatalf("dismissed flag not stored %s", body)
	}
}
