package extchannel

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// A Logger prints everything it gets and appends it to latest.txt
type Logger struct {
	mu sync.Mutex
	f  *os.File
}

// NewLogger opens dir/latest.txt for appending,
// the previous one is kept as last.txt
func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, err
	}

	latest := filepath.Join(dir, "latest.txt")
	os.Rename(latest, filepath.Join(dir, "last.txt"))

	f, err := os.OpenFile(latest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}

	return &Logger{f: f}, nil
}

func (l *Logger) Write(p []byte) (int, error) {
	fmt.Print(string(p))

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return len(p), nil
	}

	return l.f.Write(p)
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}

	err := l.f.Close()
	l.f = nil
	return err
}

// InitLogging routes the standard logger through a Logger
func InitLogging(dir string) (*Logger, error) {
	l, err := NewLogger(dir)
	if err != nil {
		return nil, err
	}

	log.SetOutput(l)
	return l, nil
}
