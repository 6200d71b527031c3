package marker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"strings"
	"time"
)

// 文档注释：外部 HTTP 检测服务适配器
// 背景：标记检测算法运行在进程外（如 OpenCV ArUco 服务），通过简单 HTTP 契约接入。
// 约束：约定 GET /health 与 POST /detect（请求体为 PNG 帧，响应 {"markers":[{id, corners:[{x,y}...]}]}）；非 200 视为检测失败。
type HTTPDetector struct {
	endpoint string
	client   *http.Client
}

func NewHTTPDetector(endpoint string, client *http.Client) *HTTPDetector {
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	return &HTTPDetector{endpoint: strings.TrimRight(endpoint, "/"), client: client}
}

// Heartbeat：访问 /health，非 200 视为不可用
func (h *HTTPDetector) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("detector health: status %d", resp.StatusCode)
	}
	return nil
}

func (h *HTTPDetector) Detect(ctx context.Context, frame *image.RGBA) ([]Detection, error) {
	var body bytes.Buffer
	if err := png.Encode(&body, frame); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/detect", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/png")
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector: status %d", resp.StatusCode)
	}
	var m struct {
		Markers []Detection `json:"markers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("detector: decode: %w", err)
	}
	return m.Markers, nil
}

// 文档注释：HTTP 快照相机
// 背景：IP 相机或手机相机桥接提供单帧快照地址（JPEG/PNG），每次取帧即请求一次快照。
// 约束：Open 时请求一次快照以确认可用；帧统一转换为 RGBA。
type SnapshotCamera struct {
	URL    string
	Client *http.Client
}

func (c *SnapshotCamera) Open(ctx context.Context) (FrameSource, error) {
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	src := &snapshotSource{url: c.URL, client: client}
	if _, err := src.Frame(ctx); err != nil {
		return nil, err
	}
	return src, nil
}

type snapshotSource struct {
	url    string
	client *http.Client
}

func (s *snapshotSource) Frame(ctx context.Context) (*image.RGBA, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot: status %d", resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return toRGBA(img), nil
}

func (s *snapshotSource) Close() error { return nil }

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// StaticCamera：循环返回固定帧（测试与离线回放）
type StaticCamera struct {
	Frames  []*image.RGBA
	OpenErr error
}

func (c *StaticCamera) Open(ctx context.Context) (FrameSource, error) {
	if c.OpenErr != nil {
		return nil, c.OpenErr
	}
	frames := c.Frames
	if len(frames) == 0 {
		frames = []*image.RGBA{image.NewRGBA(image.Rect(0, 0, 640, 480))}
	}
	return &staticSource{frames: frames}, nil
}

type staticSource struct {
	frames []*image.RGBA
	i      int
	closed bool
}

func (s *staticSource) Frame(ctx context.Context) (*image.RGBA, error) {
	if s.closed {
		return nil, fmt.Errorf("frame source closed")
	}
	f := s.frames[s.i%len(s.frames)]
	s.i++
	return f, nil
}

func (s *staticSource) Close() error {
	s.closed = true
	return nil
}
