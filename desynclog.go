package extchannel

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// A DesyncReport describes one failed sync check
type DesyncReport struct {
	Time     time.Time `json:"time"`
	Slot     int       `json:"slot"`
	Name     string    `json:"name"`
	Addr     string    `json:"addr"`
	Tick     float64   `json:"tick"`
	Sequence uint32    `json:"sequence"`

	ServerCRC   uint32 `json:"server_crc"`
	ClientCRC   uint32 `json:"client_crc"`
	ServerLevel uint32 `json:"server_level"`
	ClientLevel uint32 `json:"client_level"`

	Verdict  string `json:"verdict"`
	BadSyncs int    `json:"bad_syncs"`
}

// A DesyncLog appends reports to hourly zstd compressed JSONL files
type DesyncLog struct {
	dir string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewDesyncLog(dir string) *DesyncLog {
	return &DesyncLog{dir: dir}
}

// Write appends one report
func (l *DesyncLog) Write(r DesyncReport) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hour := r.Time.UTC().Format("2006-01-02-15")
	if hour != l.curHour {
		if err := l.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := l.w.Flush(); err != nil {
		return err
	}
	return l.enc.Flush()
}

func (l *DesyncLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.closeLocked()
}

func (l *DesyncLog) rotateLocked(hour string) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		f.Close()
		return err
	}

	l.f = f
	l.enc = enc
	l.w = bufio.NewWriter(enc)
	l.curHour = hour
	return nil
}

func (l *DesyncLog) closeLocked() error {
	var err error
	if l.w != nil {
		l.w.Flush()
	}
	if l.enc != nil {
		err = l.enc.Close()
		l.enc = nil
	}
	if l.f != nil {
		l.f.Close()
		l.f = nil
	}

	l.w = nil
	l.curHour = ""
	return err
}

func (l *DesyncLog) path(hour string) string {
	return filepath.Join(l.dir, fmt.Sprintf("desync-%s.jsonl.zst", hour))
}

func (s *Server) reportDesync(c *Conn, local, remote SyncCheck, verdict SyncVerdict, bad int) {
	if s.desync == nil {
		return
	}

	err := s.desync.Write(DesyncReport{
		Time:        time.Now(),
		Slot:        c.Slot(),
		Name:        c.Name(),
		Addr:        c.Addr().String(),
		Tick:        remote.Tick,
		Sequence:    remote.Sequence,
		ServerCRC:   local.CRC,
		ClientCRC:   remote.CRC,
		ServerLevel: local.LevelID,
		ClientLevel: remote.LevelID,
		Verdict:     verdict.String(),
		BadSyncs:    bad,
	})
	if err != nil {
		log.Print(err)
	}
}
