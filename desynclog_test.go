package extchannel

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func TestDesyncLog(t *testing.T) {
	dir := t.TempDir()
	l := NewDesyncLog(dir)

	now := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	reports := []DesyncReport{
		{Time: now, Slot: 1, Name: "alice", Tick: 1.5, ServerCRC: 1, ClientCRC: 2, Verdict: "mismatch", BadSyncs: 1},
		{Time: now.Add(time.Minute), Slot: 1, Name: "alice", Tick: 2.5, ServerCRC: 3, ClientCRC: 4, Verdict: "kick", BadSyncs: 2},
	}

	for _, r := range reports {
		if err := l.Write(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "desync-2024-03-01-14.jsonl.zst"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()

	var got []DesyncReport
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var r DesyncReport
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatal(err)
		}
		got = append(got, r)
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}

	if len(got) != len(reports) {
		t.Fatalf("expected %d reports, got %d", len(reports), len(got))
	}
	for i := range got {
		if got[i].Tick != reports[i].Tick || got[i].Verdict != reports[i].Verdict || !got[i].Time.Equal(reports[i].Time) {
			t.Fatalf("report %d: expected %+v, got %+v", i, reports[i], got[i])
		}
	}
}

func TestDesyncLogRotates(t *testing.T) {
	dir := t.TempDir()
	l := NewDesyncLog(dir)
	defer l.Close()

	now := time.Date(2024, 3, 1, 14, 59, 0, 0, time.UTC)
	if err := l.Write(DesyncReport{Time: now}); err != nil {
		t.Fatal(err)
	}
	if err := l.Write(DesyncReport{Time: now.Add(2 * time.Minute)}); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"desync-2024-03-01-14.jsonl.zst", "desync-2024-03-01-15.jsonl.zst"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatal(err)
		}
	}
}
