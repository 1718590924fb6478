package scene

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/JesusEspinola/TFG/internal/tree"
)

const snapshotVersion = 1

// SnapshotHeader is the first JSON line of a snapshot stream.
type SnapshotHeader struct {
	Version    int       `json:"version"`
	Generation uint64    `json:"generation"`
	Count      int       `json:"count"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Snapshot is a persisted copy of one scatter.
type Snapshot struct {
	Header SnapshotHeader `json:"header"`
	Trees  []tree.Record  `json:"trees"`
}

// TakeSnapshot captures the session's current trees.
func TakeSnapshot(s *Session) Snapshot {
	ev := s.Current()
	return Snapshot{
		Header: SnapshotHeader{
			Version:    snapshotVersion,
			Generation: ev.Generation,
			Count:      len(ev.Trees),
			CreatedAt:  time.Now().UTC(),
		},
		Trees: ev.Trees,
	}
}

// Store persists snapshots.
type Store interface {
	Save(snap Snapshot) error
	Load() (Snapshot, bool, error)
}

type MemoryStore struct {
	mu   sync.RWMutex
	snap *Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(snap Snapshot) error {
	dup := snap
	dup.Trees = append([]tree.Record(nil), snap.Trees...)
	m.mu.Lock()
	m.snap = &dup
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load() (Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return Snapshot{}, false, nil
	}
	dup := *m.snap
	dup.Trees = append([]tree.Record(nil), m.snap.Trees...)
	return dup, true, nil
}

// FileStore writes zstd compressed snapshots to a single path.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Save(snap Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp := f.path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	if err := writeSnapshot(file, snap); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}
	return nil
}

func writeSnapshot(file *os.File, snap Snapshot) error {
	enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return fmt.Errorf("encode snapshot header: %w", err)
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		enc.Close()
		return fmt.Errorf("write snapshot header: %w", err)
	}
	if err := json.NewEncoder(bw).Encode(snap.Trees); err != nil {
		enc.Close()
		return fmt.Errorf("encode snapshot trees: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish snapshot: %w", err)
	}
	return nil
}

func (f *FileStore) Load() (Snapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var snap Snapshot
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return snap, false, nil
		}
		return snap, false, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	dec, err := zstd.NewReader(file)
	if err != nil {
		return snap, false, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, false, fmt.Errorf("read snapshot header: %w", err)
	}
	if err := json.Unmarshal(line, &snap.Header); err != nil {
		return snap, false, fmt.Errorf("decode snapshot header: %w", err)
	}
	if snap.Header.Version != snapshotVersion {
		return snap, false, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if err := json.NewDecoder(br).Decode(&snap.Trees); err != nil {
		return snap, false, fmt.Errorf("decode snapshot trees: %w", err)
	}
	return snap, true, nil
}
