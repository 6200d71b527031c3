package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"olive-mapper/internal/position"
	"olive-mapper/internal/slot"
	"olive-mapper/internal/stats"
	"olive-mapper/internal/store"
)

type fixedDistance struct {
	d  float64
	ok bool
}

func (f fixedDistance) LastDistance() (float64, bool) { return f.d, f.ok }

var at = time.Date(2024, 5, 5, 9, 30, 0, 0, time.UTC)

func newFlow(t *testing.T, p position.Provider, opts ...Option) (*Flow, *store.Store, *slot.Memory) {
	t.Helper()
	sl := slot.NewMemory()
	st := store.New(sl)
	opts = append([]Option{WithClock(func() time.Time { return at })}, opts...)
	return New(st, stats.NewEngine("en"), p, opts...), st, sl
}

func TestCaptureFromLocation(t *testing.T) {
	ctx := context.Background()
	f, st, sl := newFlow(t, nil)
	rec, err := f.CaptureFromLocation(ctx, position.Fix{Latitude: 37.5, Longitude: 22.5, Accuracy: 6.5})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if rec.Accuracy != 6.5 || rec.MeasurementMethod != "" || rec.Timestamp != "2024-05-05T09:30:00.000Z" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if got, ok := st.Get(rec.ID); !ok || got != rec {
		t.Fatalf("record not stored")
	}
	if _, err := sl.Load(ctx, slot.KeyTrees); err != nil {
		t.Fatalf("capture must persist: %v", err)
	}
	if f.stats.Latest().Count != 1 {
		t.Fatalf("stats not refreshed")
	}
}

func TestCaptureCurrent(t *testing.T) {
	ctx := context.Background()
	f, st, _ := newFlow(t, position.Static{Fix: position.Fix{Latitude: 1, Longitude: 2, Accuracy: 3}})
	rec, err := f.CaptureCurrent(ctx)
	if err != nil || rec.Latitude != 1 || rec.Longitude != 2 || rec.Accuracy != 3 {
		t.Fatalf("capture: %+v %v", rec, err)
	}

	f2, st2, _ := newFlow(t, position.Static{Err: &position.Error{Kind: position.PermissionDenied}})
	_, err = f2.CaptureCurrent(ctx)
	var pe *position.Error
	if !errors.As(err, &pe) || pe.Kind != position.PermissionDenied {
		t.Fatalf("want permission denied, got %v", err)
	}
	if st2.Len() != 0 || st.Len() != 1 {
		t.Fatalf("failed fix must not create a record")
	}
}

func TestCaptureFromMarkerRequiresDistance(t *testing.T) {
	f, st, _ := newFlow(t, position.Static{}, WithDistanceSource(fixedDistance{}))
	if _, err := f.CaptureFromMarker(context.Background()); !errors.Is(err, ErrNoMarkerDetected) {
		t.Fatalf("want ErrNoMarkerDetected, got %v", err)
	}
	f2, _, _ := newFlow(t, position.Static{})
	if _, err := f2.CaptureFromMarker(context.Background()); !errors.Is(err, ErrNoMarkerDetected) {
		t.Fatalf("missing source: want ErrNoMarkerDetected, got %v", err)
	}
	if st.Len() != 0 {
		t.Fatalf("no record expected")
	}
}

func TestCaptureFromMarkerWithFix(t *testing.T) {
	fix := position.Fix{Latitude: 37.1, Longitude: 22.2, Accuracy: 30}
	f, _, _ := newFlow(t, position.Static{Fix: fix}, WithDistanceSource(fixedDistance{d: 3.456, ok: true}))
	rec, err := f.CaptureFromMarker(context.Background())
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if rec.Latitude != 37.1 || rec.Longitude != 22.2 || rec.Accuracy != 3.456 {
		t.Fatalf("accuracy must carry the marker distance: %+v", rec)
	}
	if rec.MeasurementMethod != store.MethodCamera || rec.Notes != "Camera distance: 3.46m" {
		t.Fatalf("unexpected method/notes %+v", rec)
	}
}

func TestCaptureFromMarkerWithoutFix(t *testing.T) {
	f, st, _ := newFlow(t, position.Static{Err: errors.New("no satellites")}, WithDistanceSource(fixedDistance{d: 2, ok: true}))
	rec, err := f.CaptureFromMarker(context.Background())
	if err != nil {
		t.Fatalf("degraded capture should still succeed: %v", err)
	}
	if rec.Latitude != 0 || rec.Longitude != 0 || rec.Notes != "Camera distance: 2.00m (No GPS)" {
		t.Fatalf("unexpected degraded record %+v", rec)
	}
	if st.Len() != 1 {
		t.Fatalf("degraded record must be stored")
	}
}

func TestCapturePersistFailureReturnsRecord(t *testing.T) {
	f, st, sl := newFlow(t, nil)
	sl.FailSave = errors.New("disk full")
	rec, err := f.CaptureFromLocation(context.Background(), position.Fix{Latitude: 1, Longitude: 1})
	if !errors.Is(err, store.ErrPersist) {
		t.Fatalf("want ErrPersist, got %v", err)
	}
	if _, ok := st.Get(rec.ID); !ok {
		t.Fatalf("record should stay in memory")
	}
}
