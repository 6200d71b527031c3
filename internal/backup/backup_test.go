package backup

import (
	"context"
	"testing"
	"time"

	"olive-mapper/internal/sink"
	"olive-mapper/internal/store"
)

func TestNextDailyAt(t *testing.T) {
	loc := time.FixedZone("EET", 2*3600)
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 1, 1, 1, 0, 0, 0, loc), time.Date(2024, 1, 1, 3, 0, 0, 0, loc)},
		{time.Date(2024, 1, 1, 3, 0, 0, 0, loc), time.Date(2024, 1, 2, 3, 0, 0, 0, loc)},
		{time.Date(2024, 12, 31, 23, 0, 0, 0, loc), time.Date(2025, 1, 1, 3, 0, 0, 0, loc)},
	}
	for _, c := range cases {
		if got := nextDailyAt(c.now, 3); !got.Equal(c.want) {
			t.Fatalf("now=%v: got %v want %v", c.now, got, c.want)
		}
	}
}

func TestHourFromEnv(t *testing.T) {
	t.Setenv("BACKUP_HOUR", "22")
	if HourFromEnv() != 22 {
		t.Fatalf("want 22")
	}
	t.Setenv("BACKUP_HOUR", "25")
	if HourFromEnv() != DefaultHour {
		t.Fatalf("out of range hour should fall back")
	}
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	st := store.New(nil)
	dst := sink.NewMemory()
	now := time.Date(2024, 2, 3, 3, 0, 0, 0, time.UTC)
	if loc, err := RunOnce(ctx, st, dst, now); err != nil || loc != "" {
		t.Fatalf("empty store should be skipped: %q %v", loc, err)
	}
	_ = st.Add(ctx, store.NewRecord(37, 22, 5, now))
	loc, err := RunOnce(ctx, st, dst, now)
	if err != nil || loc != "memory://olive-trees-2024-02-03.geojson" {
		t.Fatalf("run: %q %v", loc, err)
	}
	if _, ct, ok := dst.Get("olive-trees-2024-02-03.geojson"); !ok || ct != "application/geo+json" {
		t.Fatalf("backup not written")
	}
}
