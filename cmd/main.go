// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"olive-mapper/internal/api"
	"olive-mapper/internal/backup"
	"olive-mapper/internal/capture"
	"olive-mapper/internal/logger"
	"olive-mapper/internal/marker"
	"olive-mapper/internal/metrics"
	"olive-mapper/internal/middleware"
	"olive-mapper/internal/position"
	"olive-mapper/internal/prefs"
	"olive-mapper/internal/sink"
	"olive-mapper/internal/slot"
	"olive-mapper/internal/stats"
	"olive-mapper/internal/store"
	"olive-mapper/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiBase := os.Getenv("API_BASE")
	if apiBase == "" {
		apiBase = "/api"
	}
	l.Debug("config_api_base", "base", apiBase)
	ui := os.Getenv("UI_DIST")
	if ui == "" {
		ui = filepath.Join("ui", "dist")
	}
	l.Debug("config_ui_dir", "dir", ui)

	sl, err := slot.Open(ctx)
	if err != nil {
		l.Error("slot_open_error", "err", err)
		os.Exit(1)
	}
	defer sl.Close()
	l.Info("slot_open_ok", "driver", slotDriver())

	st := store.New(sl)
	n := st.Restore(ctx)
	eng := stats.NewEngine(os.Getenv("OLIVE_LOCALE"))
	eng.Refresh(st.List())
	l.Info("store_ready", "trees", n)

	// 文档注释：定位提供者
	// 背景：设备端请求体可直接携带定位；配置 POSITION_ENDPOINT 时服务端也可自行取一次定位（如 gpsd 桥接）。
	var provider position.Provider
	if ep := os.Getenv("POSITION_ENDPOINT"); ep != "" {
		provider = position.NewHTTP(ep, nil)
		l.Info("position_provider", "endpoint", ep)
	} else {
		l.Info("position_provider_disabled")
	}
	timeout := position.DefaultTimeout
	if s := os.Getenv("POSITION_TIMEOUT_S"); s != "" {
		if v, e := strconv.Atoi(s); e == nil && v > 0 {
			timeout = time.Duration(v) * time.Second
		}
	}

	// 文档注释：相机与标记检测
	// 背景：检测服务不可用时估距器仍然构建，启动采样时返回能力不可用。
	var camera marker.Camera
	if u := os.Getenv("CAMERA_SNAPSHOT_URL"); u != "" {
		camera = &marker.SnapshotCamera{URL: u}
	}
	var detector marker.Detector
	if ep := os.Getenv("DETECTOR_ENDPOINT"); ep != "" {
		d := marker.NewHTTPDetector(ep, nil)
		hctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := d.Heartbeat(hctx); err != nil {
			l.Warn("detector_heartbeat_error", "endpoint", ep, "err", err)
		} else {
			l.Info("detector_ready", "endpoint", ep)
		}
		cancel()
		detector = d
	}
	sizeCm := marker.DefaultMarkerSizeCm
	if s := os.Getenv("MARKER_SIZE_CM"); s != "" {
		if v, e := strconv.ParseFloat(s, 64); e == nil {
			sizeCm = v
		}
	}
	est := marker.NewEstimator(camera, detector, marker.WithMarkerSizeCm(sizeCm))
	defer est.Stop()

	flow := capture.New(st, eng, provider, capture.WithTimeout(timeout), capture.WithDistanceSource(est))

	dst, err := sink.Open(ctx)
	if err != nil {
		l.Error("export_sink_error", "err", err)
		dst = nil
	}
	if os.Getenv("BACKUP_ENABLED") == "true" {
		if dst != nil {
			backup.StartDaily(ctx, st, dst, backup.HourFromEnv())
		} else {
			l.Warn("backup_disabled", "reason", "no_sink")
		}
	}

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(api.Deps{
		Store:     st,
		Stats:     eng,
		Capture:   flow,
		Estimator: est,
		Prefs:     prefs.New(sl),
		Sink:      dst,
	})
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())
	mux.Handle("/", http.FileServer(http.Dir(ui)))
	// NOTE: 向前端暴露 API 基础路径，避免硬编码
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + apiBase + "'\n"))
	})

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		l.Info("shutdown_begin")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(sctx)
	}()

	tlsEnable := os.Getenv("TLS_ENABLE")
	if tlsEnable == "" || tlsEnable == "true" {
		certPath := os.Getenv("TLS_CERT_PATH")
		keyPath := os.Getenv("TLS_KEY_PATH")
		if certPath == "" {
			certPath = filepath.Join("data", "certs", "server.crt")
		}
		if keyPath == "" {
			keyPath = filepath.Join("data", "certs", "server.key")
		}
		hosts := strings.Split(os.Getenv("TLS_HOSTS"), ",")
		if err := utils.EnsureSelfSignedCert(certPath, keyPath, "olive-mapper.local", hosts...); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		if os.Getenv("TLS_REDIRECT_ENABLE") == "true" {
			go serveRedirect(l, addr)
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		if err := s.ListenAndServeTLS(certPath, keyPath); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server_error", "err", err)
		}
		return
	}
	l.Info("listening", "addr", addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
	}
}

func slotDriver() string {
	if d := os.Getenv("SLOT_DRIVER"); d != "" {
		return d
	}
	return string(slot.DriverSQLite)
}
