package storage

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"sheettrack/internal/sheet"
)

func kvBackends(t *testing.T) map[string]func() KV {
	t.Helper()
	dir := t.TempDir()
	return map[string]func() KV{
		"file": func() KV {
			kv, err := NewFileKV(filepath.Join(dir, "data", "tracker.json"))
			if err != nil {
				t.Fatalf("file kv: %v", err)
			}
			return kv
		},
		"sqlite": func() KV {
			kv, err := NewSQLiteKV(filepath.Join(dir, "data", "tracker.db"))
			if err != nil {
				t.Fatalf("sqlite kv: %v", err)
			}
			return kv
		},
	}
}

func TestRecordStore_RoundTripAcrossRestart(t *testing.T) {
	for name, open := range kvBackends(t) {
		t.Run(name, func(t *testing.T) {
			want := sheet.State{Log: sheet.Seed(), Watermark: 3}

			kv := open()
			if err := NewRecordStore(kv).Save(want); err != nil {
				t.Fatalf("save: %v", err)
			}
			if err := kv.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			kv = open()
			defer kv.Close()
			got := NewRecordStore(kv).Load()
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("restored state differs:\n got %+v\nwant %+v", got, want)
			}
		})
	}
}

func TestRecordStore_EmptyFallsBackToSeed(t *testing.T) {
	got := NewRecordStore(NewMemoryKV()).Load()
	if len(got.Log) != 3 || got.Watermark != 3 {
		t.Fatalf("unexpected default state: %+v", got)
	}
	if len(got.New()) != 0 {
		t.Fatalf("fresh seed should have no new rows")
	}
}

func TestRecordStore_MalformedValues(t *testing.T) {
	kv := NewMemoryKV()
	_ = kv.Set(KeyRecords, "[{broken")
	_ = kv.Set(KeyWatermark, "three")
	got := NewRecordStore(kv).Load()
	if !reflect.DeepEqual(got, sheet.NewState()) {
		t.Fatalf("malformed state should fall back to seed, got %+v", got)
	}
}

func TestRecordStore_WatermarkClamped(t *testing.T) {
	kv := NewMemoryKV()
	_ = kv.Set(KeyRecords, `[{"id":"a","status":"active","value":1}]`)
	_ = kv.Set(KeyWatermark, "10")
	if got := NewRecordStore(kv).Load(); got.Watermark != 1 {
		t.Fatalf("want watermark clamped to 1, got %d", got.Watermark)
	}

	_ = kv.Set(KeyWatermark, "-4")
	if got := NewRecordStore(kv).Load(); got.Watermark != 0 {
		t.Fatalf("want watermark clamped to 0, got %d", got.Watermark)
	}
}

func TestRecordStore_PersistedKeys(t *testing.T) {
	kv := NewMemoryKV()
	st := sheet.NewState().Append(sheet.Record{ID: "x", Status: sheet.StatusPending, Value: 7})
	if err := NewRecordStore(kv).Save(st); err != nil {
		t.Fatalf("save: %v", err)
	}
	wm, ok, _ := kv.Get(KeyWatermark)
	if !ok || wm != "3" {
		t.Fatalf("watermark stored as %q", wm)
	}
	if _, ok, _ := kv.Get(KeyRecords); !ok {
		t.Fatalf("records not stored")
	}
}

type failingKV struct{}

func (failingKV) Get(string) (string, bool, error) { return "", false, errors.New("disk gone") }
func (failingKV) Set(string, string) error { return errors.New("disk gone") }
func (failingKV) Close() error { return nil }

func TestRecordStore_ReadFailureIsAbsence(t *testing.T) {
	s := NewRecordStore(failingKV{})
	if got := s.Load(); !reflect.DeepEqual(got, sheet.NewState()) {
		t.Fatalf("read failure should yield seed, got %+v", got)
	}
	if err := s.Save(sheet.NewState()); err == nil {
		t.Fatalf("expected save error")
	}
}
