package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"olive-mapper/internal/logger"
	"olive-mapper/internal/prefs"
	"olive-mapper/internal/slot"
	"olive-mapper/internal/stats"
	"olive-mapper/internal/store"
)

func newSession(t *testing.T) (*session, *bytes.Buffer) {
	t.Helper()
	logger.SetupWriter(io.Discard)
	sl := slot.NewMemory()
	buf := &bytes.Buffer{}
	return &session{
		store: store.New(sl),
		stats: stats.NewEngine("en"),
		prefs: prefs.New(sl),
		now:   func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) },
		out:   buf,
	}, buf
}

func TestSessionAddEditDelete(t *testing.T) {
	s, buf := newSession(t)
	ctx := context.Background()
	s.exec(ctx, "add 37.5 22.5 4")
	id := strings.TrimSpace(buf.String())
	if _, ok := s.store.Get(id); !ok {
		t.Fatalf("added id %q not in store", id)
	}
	buf.Reset()
	s.exec(ctx, "note "+id+"  near the   well ")
	s.exec(ctx, "variety "+id+" Koroneiki")
	r, _ := s.store.Get(id)
	if r.Notes != "near the well" || r.Variety != "Koroneiki" {
		t.Fatalf("record: %+v", r)
	}
	buf.Reset()
	s.exec(ctx, "show "+id)
	if !strings.Contains(buf.String(), "[Koroneiki]") {
		t.Fatalf("show: %s", buf.String())
	}
	buf.Reset()
	s.exec(ctx, "del "+id)
	s.exec(ctx, "del "+id)
	if got := buf.String(); got != "ok\nnone\n" {
		t.Fatalf("del output: %q", got)
	}
}

func TestSessionBadInput(t *testing.T) {
	s, buf := newSession(t)
	ctx := context.Background()
	s.exec(ctx, "add north east")
	s.exec(ctx, "show missing")
	s.exec(ctx, "frobnicate")
	out := buf.String()
	for _, want := range []string{"bad coordinates", "tree missing not found", "unknown command"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if s.store.Len() != 0 {
		t.Fatalf("store should be empty")
	}
	if !s.exec(ctx, "exit") {
		t.Fatalf("exit should quit")
	}
}

func TestSessionImportExportStats(t *testing.T) {
	s, buf := newSession(t)
	ctx := context.Background()
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	csv := "ID,Latitude,Longitude,Accuracy (m),Timestamp\n" +
		"1,37.0,22.0,5,2024-01-01T00:00:00.000Z\n" +
		"2,37.0,22.001,5,2024-01-01T00:00:00.000Z\n" +
		"3,37.001,22.0,5,2024-01-01T00:00:00.000Z\n" +
		"4,bad,22.0,5,2024-01-01T00:00:00.000Z\n"
	if err := os.WriteFile(in, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	s.exec(ctx, "import "+in)
	if !strings.Contains(buf.String(), "imported 3, skipped 1") {
		t.Fatalf("import: %q", buf.String())
	}
	buf.Reset()
	s.exec(ctx, "stats")
	if !strings.Contains(buf.String(), "trees: 3") || !strings.Contains(buf.String(), "density: 3") {
		t.Fatalf("stats: %q", buf.String())
	}
	out := filepath.Join(dir, "out.geojson")
	s.exec(ctx, "export geojson "+out)
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"FeatureCollection"`) {
		t.Fatalf("export: %s", b)
	}
	buf.Reset()
	s.exec(ctx, "clear")
	s.exec(ctx, "export csv "+filepath.Join(dir, "empty.csv"))
	if !strings.HasPrefix(buf.String(), "ok\nerror:") {
		t.Fatalf("clear/export: %q", buf.String())
	}
}

func TestSessionTheme(t *testing.T) {
	s, buf := newSession(t)
	ctx := context.Background()
	s.exec(ctx, "theme")
	s.exec(ctx, "theme toggle")
	s.exec(ctx, "theme purple")
	s.exec(ctx, "theme light")
	s.exec(ctx, "theme")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 || lines[0] != "light" || lines[1] != "dark" || !strings.HasPrefix(lines[2], "error:") || lines[3] != "ok" || lines[4] != "light" {
		t.Fatalf("theme output: %q", lines)
	}
}
