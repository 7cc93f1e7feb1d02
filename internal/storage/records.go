package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"sheettrack/internal/sheet"
)

const (
	KeyRecords   = "sheet_tracker_data"
	KeyWatermark = "last_processed_count"
)

// RecordStore persists the record log and the watermark under two keys of
// a KV backend.
type RecordStore struct {
	kv KV
}

func NewRecordStore(kv KV) *RecordStore {
	return &RecordStore{kv: kv}
}

// Load restores the persisted state. Missing or unreadable keys fall back to
// the default seed; read errors are logged, never returned.
func (s *RecordStore) Load() sheet.State {
	seed := sheet.NewState()
	st := seed

	if raw, ok, err := s.kv.Get(KeyRecords); err != nil {
		log.Printf("⚠️ failed to read %s, using seed: %v", KeyRecords, err)
	} else if ok {
		var rows []sheet.Record
		if err := json.Unmarshal([]byte(raw), &rows); err != nil {
			log.Printf("⚠️ malformed %s, using seed: %v", KeyRecords, err)
		} else {
			st.Log = rows
			if st.Log == nil {
				st.Log = []sheet.Record{}
			}
		}
	}

	// a missing watermark marks only the seed rows as processed, even when
	// the log itself was restored
	st.Watermark = len(seed.Log)
	if raw, ok, err := s.kv.Get(KeyWatermark); err != nil {
		log.Printf("⚠️ failed to read %s: %v", KeyWatermark, err)
	} else if ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			log.Printf("⚠️ malformed %s %q: %v", KeyWatermark, raw, err)
		} else {
			st.Watermark = n
		}
	}
	return st.Normalize()
}

// Save writes the log and the watermark. The two writes are not atomic.
func (s *RecordStore) Save(st sheet.State) error {
	rows := st.Log
	if rows == nil {
		rows = []sheet.Record{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := s.kv.Set(KeyRecords, string(data)); err != nil {
		return fmt.Errorf("save records: %w", err)
	}
	if err := s.kv.Set(KeyWatermark, strconv.Itoa(st.Watermark)); err != nil {
		return fmt.Errorf("save watermark: %w", err)
	}
	return nil
}
