package ytuploader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ausocean/utils/logging"
)

// HistoryLimit is the number of most recent uploads kept in upload_history.
const HistoryLimit = 100

// ErrLedgerCorrupt is reported (and recovered from) when the ledger file exists
// but cannot be parsed.
var ErrLedgerCorrupt = errors.New("ledger is corrupt")

// HistoryEntry - one successful upload.
type HistoryEntry struct {
	VideoPath  string    `json:"video_path"`
	VideoID    string    `json:"video_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// LedgerRecord is the persisted state of everything uploaded so far.
type LedgerRecord struct {
	VideoPaths    []string       `json:"video_paths"`
	VideoIDs      []string       `json:"video_ids"`
	UploadHistory []HistoryEntry `json:"upload_history"`
}

// EmptyLedger returns the default record used when nothing has been uploaded.
func EmptyLedger() LedgerRecord {
	return LedgerRecord{
		VideoPaths:    []string{},
		VideoIDs:      []string{},
		UploadHistory: []HistoryEntry{},
	}
}

// Contains reports whether path has already been uploaded.
func (r LedgerRecord) Contains(path string) bool {
	for _, p := range r.VideoPaths {
		if p == path {
			return true
		}
	}
	return false
}

// pathSet returns video_paths as a set for repeated lookups.
func (r LedgerRecord) pathSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.VideoPaths))
	for _, p := range r.VideoPaths {
		set[p] = struct{}{}
	}
	return set
}

// RecordUpload returns a copy of r with the upload appended. The receiver is
// left untouched.
func (r LedgerRecord) RecordUpload(path, id string, at time.Time) LedgerRecord {
	paths := make([]string, 0, len(r.VideoPaths)+1)
	ids := make([]string, 0, len(r.VideoIDs)+1)
	history := make([]HistoryEntry, 0, len(r.UploadHistory)+1)
	return LedgerRecord{
		VideoPaths: append(append(paths, r.VideoPaths...), path),
		VideoIDs:   append(append(ids, r.VideoIDs...), id),
		UploadHistory: trimHistory(append(append(history, r.UploadHistory...),
			HistoryEntry{VideoPath: path, VideoID: id, UploadedAt: at.UTC()})),
	}
}

// trimHistory drops the oldest entries beyond HistoryLimit.
func trimHistory(h []HistoryEntry) []HistoryEntry {
	if len(h) <= HistoryLimit {
		return h
	}
	return append([]HistoryEntry(nil), h[len(h)-HistoryLimit:]...)
}

// repair normalises a record that parsed but may not have the expected shape.
func (r LedgerRecord) repair() LedgerRecord {
	out := EmptyLedger()
	for _, p := range r.VideoPaths {
		if p != "" {
			out.VideoPaths = append(out.VideoPaths, p)
		}
	}
	for _, id := range r.VideoIDs {
		if id != "" {
			out.VideoIDs = append(out.VideoIDs, id)
		}
	}
	for _, h := range r.UploadHistory {
		if h.VideoPath == "" || h.VideoID == "" {
			continue
		}
		out.UploadHistory = append(out.UploadHistory, h)
	}
	out.UploadHistory = trimHistory(out.UploadHistory)
	return out
}

// decodeLedger parses ledger bytes. Besides the current object format it
// accepts a bare JSON array of paths, which older releases wrote. Fields are
// decoded one by one so a bad id or history entry costs only that value and
// never the recorded paths.
func decodeLedger(b []byte) (LedgerRecord, error) {
	var fields map[string]json.RawMessage
	objErr := json.Unmarshal(b, &fields)
	if objErr != nil {
		var paths []string
		if err := json.Unmarshal(b, &paths); err == nil {
			rec := EmptyLedger()
			rec.VideoPaths = paths
			return rec.repair(), nil
		}
		return EmptyLedger(), fmt.Errorf("%w: %v", ErrLedgerCorrupt, objErr)
	}

	rec := EmptyLedger()
	if raw, ok := fields["video_paths"]; ok {
		paths, ok := decodeStrings(raw)
		if !ok {
			return EmptyLedger(), fmt.Errorf("%w: video_paths is not a list", ErrLedgerCorrupt)
		}
		rec.VideoPaths = paths
	}
	if raw, ok := fields["video_ids"]; ok {
		rec.VideoIDs, _ = decodeStrings(raw)
	}
	if raw, ok := fields["upload_history"]; ok {
		var elems []json.RawMessage
		if json.Unmarshal(raw, &elems) == nil {
			for _, e := range elems {
				var h HistoryEntry
				if json.Unmarshal(e, &h) == nil {
					rec.UploadHistory = append(rec.UploadHistory, h)
				}
			}
		}
	}
	return rec.repair(), nil
}

// decodeStrings decodes a JSON list keeping only its string elements. It
// reports false when raw is not a list at all.
func decodeStrings(raw json.RawMessage) ([]string, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		var s string
		if json.Unmarshal(e, &s) == nil {
			out = append(out, s)
		}
	}
	return out, true
}

// LoadLedger reads the ledger at path. A missing or unparseable file yields
// the empty record, so the error is informational only.
func LoadLedger(path string) (LedgerRecord, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return EmptyLedger(), nil
	}
	if err != nil {
		return EmptyLedger(), fmt.Errorf("%w: %v", ErrLedgerCorrupt, err)
	}
	return decodeLedger(b)
}

// PersistLedger overwrites the ledger at path with rec.
func PersistLedger(path string, rec LedgerRecord) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	return writeFileAtomic(path, append(b, '\n'), 0o644)
}

// writeFileAtomic writes data to a temp file next to path and renames it into
// place, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}

// Ledger keeps the in-memory record for one run together with where it is
// persisted.
type Ledger struct {
	path string
	rec  LedgerRecord
	log  logging.Logger
}

// OpenLedger loads the ledger at path. It never fails: a corrupt file is
// logged and replaced by the empty record.
func OpenLedger(path string, log logging.Logger) *Ledger {
	rec, err := LoadLedger(path)
	if err != nil {
		log.Warning("ledger unreadable, starting from empty ledger", "path", path, "error", err)
	}
	log.Debug("ledger loaded", "path", path, "uploaded", len(rec.VideoPaths))
	return &Ledger{path: path, rec: rec, log: log}
}

// Record returns the current in-memory record.
func (l *Ledger) Record() LedgerRecord { return l.rec }

// Contains reports whether path has already been uploaded.
func (l *Ledger) Contains(path string) bool { return l.rec.Contains(path) }

// Commit records a successful upload and persists the ledger immediately.
// The in-memory record is updated even when persisting fails, so the same
// path cannot be uploaded again within this run.
func (l *Ledger) Commit(path, id string, at time.Time) error {
	l.rec = l.rec.RecordUpload(path, id, at)
	if err := PersistLedger(l.path, l.rec); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	l.log.Debug("ledger persisted", "path", l.path, "uploaded", len(l.rec.VideoPaths))
	return nil
}
