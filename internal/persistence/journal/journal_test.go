package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"minepilot.ai/internal/fault"
)

func TestJournalRotatesHourlyAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	j := Open(dir, nil)
	clock := time.Date(2025, 3, 1, 10, 59, 0, 0, time.UTC)
	j.w.now = func() time.Time { return clock }

	j.ObserveTick("guard", 12*time.Millisecond, nil)
	j.ObserveCall("dig_block", 3*time.Millisecond, fault.TargetUnavailable("no block at (1, 2, 3)"))
	clock = clock.Add(2 * time.Minute)
	j.ObserveTick("patrol", time.Millisecond, errors.New("boom"))
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir)
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 hourly files, got %v", files)
	}
	if filepath.Base(files[0]) != "journal-2025-03-01-10.jsonl.zst" {
		t.Fatalf("unexpected first file %s", files[0])
	}

	var first []Entry
	if err := ReadFile(files[0], func(e Entry) error { first = append(first, e); return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(first))
	}
	if first[0].Kind != KindTick || first[0].Name != "guard" || !first[0].OK || first[0].DurationMS != 12 {
		t.Fatalf("unexpected tick entry %+v", first[0])
	}
	if first[1].Kind != KindTool || first[1].OK || first[1].Code != fault.CodeTargetUnavailable {
		t.Fatalf("unexpected tool entry %+v", first[1])
	}
	if first[0].ID == "" || first[0].ID == first[1].ID {
		t.Fatalf("entries need distinct ids")
	}

	var second []Entry
	if err := ReadFile(files[1], func(e Entry) error { second = append(second, e); return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(second) != 1 || second[0].Error != "boom" || second[0].Code != "" {
		t.Fatalf("unexpected entries %+v", second)
	}
}

func TestFilesIgnoresOtherNames(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "other")
	if err := w.Write(map[string]int{"a": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.Close()
	files, err := Files(dir)
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no journal files, got %v", files)
	}
}

func TestWriteAfterCloseFails(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, filePrefix)
	if err := w.Write(Entry{Name: "guard"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Write(Entry{Name: "late"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	files, err := Files(dir)
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %v", files)
	}
	var names []string
	if err := ReadFile(files[0], func(e Entry) error { names = append(names, e.Name); return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(names) != 1 || names[0] != "guard" {
		t.Fatalf("late entry must not reach disk, got %v", names)
	}
}
