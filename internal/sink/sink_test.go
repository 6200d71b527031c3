package sink

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestFSWriteOverwrites(t *testing.T) {
	dir := t.TempDir()
	s := NewFS(dir)
	loc, err := s.Write(context.Background(), "olive-trees-2024-01-01.csv", "text/csv", []byte("v1"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if loc != filepath.Join(dir, "olive-trees-2024-01-01.csv") {
		t.Fatalf("location %q", loc)
	}
	if _, err := s.Write(context.Background(), "../olive-trees-2024-01-01.csv", "text/csv", []byte("v2")); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(loc)
	if err != nil || string(b) != "v2" {
		t.Fatalf("content %q %v", b, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestMemorySink(t *testing.T) {
	m := NewMemory()
	if _, err := m.Write(context.Background(), "a.geojson", "application/geo+json", []byte("{}")); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, ct, ok := m.Get("a.geojson")
	if !ok || string(b) != "{}" || ct != "application/geo+json" {
		t.Fatalf("get: %q %q %v", b, ct, ok)
	}
}

func TestOpenDriverSelection(t *testing.T) {
	t.Setenv("EXPORT_DRIVER", "memory")
	s, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("want memory sink, got %T", s)
	}
	t.Setenv("EXPORT_DRIVER", "ftp")
	if _, err := Open(context.Background()); err == nil {
		t.Fatalf("unknown driver should fail")
	}
	t.Setenv("EXPORT_DRIVER", "s3")
	t.Setenv("EXPORT_S3_BUCKET", "")
	if _, err := Open(context.Background()); err == nil {
		t.Fatalf("s3 without bucket should fail")
	}
}

func TestS3WriteAgainstFakeEndpoint(t *testing.T) {
	var (
		mu      sync.Mutex
		gotPath string
		gotType string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath, gotType, gotBody = r.URL.Path, r.Header.Get("Content-Type"), b
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	s, err := NewS3(context.Background(), S3Config{
		Bucket:          "backups",
		Endpoint:        srv.URL,
		Prefix:          "/olive/",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	loc, err := s.Write(context.Background(), "olive-trees-2024-01-01.csv", "text/csv", []byte("ID\n"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if loc != "s3://backups/olive/olive-trees-2024-01-01.csv" {
		t.Fatalf("location %q", loc)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/backups/olive/olive-trees-2024-01-01.csv" || gotType != "text/csv" {
		t.Fatalf("request %q %q", gotPath, gotType)
	}
	if len(gotBody) == 0 {
		t.Fatalf("empty body")
	}
}
