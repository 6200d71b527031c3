package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"olive-mapper/internal/codec"
	"olive-mapper/internal/prefs"
	"olive-mapper/internal/stats"
	"olive-mapper/internal/store"
)

// session：交互命令的执行上下文；输出写入 out 以便测试
type session struct {
	store *store.Store
	stats *stats.Engine
	prefs *prefs.Prefs
	now   func() time.Time
	out   io.Writer
}

func (s *session) help() {
	fmt.Fprintln(s.out, "commands:")
	fmt.Fprintln(s.out, "  list [recent]")
	fmt.Fprintln(s.out, "  show <id>")
	fmt.Fprintln(s.out, "  add <lat> <lon> [accuracy]")
	fmt.Fprintln(s.out, "  note <id> <text...>")
	fmt.Fprintln(s.out, "  variety <id> <text...>")
	fmt.Fprintln(s.out, "  del <id>")
	fmt.Fprintln(s.out, "  clear")
	fmt.Fprintln(s.out, "  stats")
	fmt.Fprintln(s.out, "  import <file.csv|file.geojson>")
	fmt.Fprintln(s.out, "  export <csv|geojson> [path]")
	fmt.Fprintln(s.out, "  theme [light|dark|toggle]")
	fmt.Fprintln(s.out, "  help")
	fmt.Fprintln(s.out, "  exit")
}

func (s *session) println(a ...any) { fmt.Fprintln(s.out, a...) }

func formatRecord(r store.TreeRecord) string {
	line := fmt.Sprintf("%s  %.6f,%.6f  ±%gm  %s", r.ID, r.Latitude, r.Longitude, r.Accuracy, r.Timestamp)
	if r.Variety != "" {
		line += "  [" + r.Variety + "]"
	}
	if r.Notes != "" {
		line += "  " + r.Notes
	}
	return line
}

// exec：执行一行命令；返回 true 表示退出
func (s *session) exec(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	parts := strings.Fields(line)
	cmd := strings.ToLower(parts[0])
	switch cmd {
	case "exit", "quit":
		return true
	case "help":
		s.help()
	case "list", "ls":
		recs := s.store.List()
		if len(parts) >= 2 && parts[1] == "recent" {
			recs = store.SortByRecency(recs)
		}
		if len(recs) == 0 {
			s.println("none")
		}
		for _, r := range recs {
			s.println(formatRecord(r))
		}
	case "show", "get":
		if len(parts) < 2 {
			s.println("usage: show <id>")
			return false
		}
		r, ok := s.store.Get(parts[1])
		if !ok {
			s.println("error:", &store.NotFoundError{ID: parts[1]})
			return false
		}
		s.println(formatRecord(r))
	case "add":
		if len(parts) < 3 {
			s.println("usage: add <lat> <lon> [accuracy]")
			return false
		}
		lat, e1 := strconv.ParseFloat(parts[1], 64)
		lon, e2 := strconv.ParseFloat(parts[2], 64)
		if e1 != nil || e2 != nil {
			s.println("error: bad coordinates")
			return false
		}
		acc := float64(codec.DefaultAccuracy)
		if len(parts) >= 4 {
			if v, e := strconv.ParseFloat(parts[3], 64); e == nil {
				acc = v
			}
		}
		rec := store.NewRecord(lat, lon, acc, s.now())
		if err := s.store.Add(ctx, rec); err != nil {
			s.println("error:", err)
			return false
		}
		if err := s.store.Persist(ctx); err != nil {
			s.println("error:", err)
			return false
		}
		s.println(rec.ID)
	case "note", "variety":
		if len(parts) < 2 {
			s.println("usage: " + cmd + " <id> <text...>")
			return false
		}
		text := strings.Join(parts[2:], " ")
		_, err := s.store.Update(ctx, parts[1], func(e *store.Editable) {
			if cmd == "note" {
				e.Notes = text
			} else {
				e.Variety = text
			}
		})
		s.result(err)
	case "del", "rm":
		if len(parts) < 2 {
			s.println("usage: del <id>")
			return false
		}
		removed, err := s.store.Remove(ctx, parts[1])
		if err != nil {
			s.println("error:", err)
		} else if !removed {
			s.println("none")
		} else {
			s.println("ok")
		}
	case "clear":
		s.result(s.store.Clear(ctx))
	case "stats":
		sum := s.stats.Refresh(s.store.List())
		s.println("trees:", sum.Count)
		s.println("area:", sum.AreaLabel)
		s.println("density:", sum.DensityLabel)
	case "import":
		if len(parts) < 2 {
			s.println("usage: import <file>")
			return false
		}
		data, err := os.ReadFile(parts[1])
		if err != nil {
			s.println("error:", err)
			return false
		}
		res, err := codec.Import(ctx, s.store, parts[1], data, s.now())
		if err != nil {
			s.println("error:", err)
			return false
		}
		s.println(fmt.Sprintf("imported %d, skipped %d", len(res.Records), res.Skipped))
	case "export":
		if len(parts) < 2 {
			s.println("usage: export <csv|geojson> [path]")
			return false
		}
		f, err := codec.ParseFormat(parts[1])
		if err != nil {
			s.println("error:", err)
			return false
		}
		data, _, err := codec.Export(f, s.store.List())
		if err != nil {
			s.println("error:", err)
			return false
		}
		path := codec.ExportFilename(f, s.now())
		if len(parts) >= 3 {
			path = parts[2]
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			s.println("error:", err)
			return false
		}
		s.println(path)
	case "theme":
		if len(parts) < 2 {
			t, err := s.prefs.Theme(ctx)
			if err != nil {
				s.println("error:", err)
				return false
			}
			s.println(t)
			return false
		}
		if parts[1] == "toggle" {
			t, err := s.prefs.ToggleTheme(ctx)
			if err != nil {
				s.println("error:", err)
				return false
			}
			s.println(t)
			return false
		}
		s.result(s.prefs.SetTheme(ctx, parts[1]))
	default:
		s.println("unknown command")
	}
	return false
}

func (s *session) result(err error) {
	if err != nil {
		s.println("error:", err)
		return
	}
	s.println("ok")
}
