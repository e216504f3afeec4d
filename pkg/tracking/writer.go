package tracking

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Writer appends JSONL records to sharded run-log files and keeps the
// index manifest in sync.
type Writer struct {
	mu sync.Mutex

	dir                string
	indexPath          string
	maxRecordsPerShard int

	idx *Index

	curFile    *os.File
	curWriter  *bufio.Writer
	curSeq     int
	curRecords int
}

type WriterConfig struct {
	Dir                string
	MaxRecordsPerShard int
	Append             bool
}

func OpenWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Dir == "" {
		return nil, errors.New("tracking dir is required")
	}
	if cfg.MaxRecordsPerShard <= 0 {
		cfg.MaxRecordsPerShard = 500
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, err
	}

	w := &Writer{
		dir:                cfg.Dir,
		indexPath:          filepath.Join(cfg.Dir, "index.json"),
		maxRecordsPerShard: cfg.MaxRecordsPerShard,
		idx: &Index{
			Version:            1,
			MaxRecordsPerShard: cfg.MaxRecordsPerShard,
			Shards:             nil,
		},
	}

	if cfg.Append {
		if idx, err := LoadIndex(w.indexPath); err == nil && idx != nil {
			w.idx = idx
			if w.idx.MaxRecordsPerShard == 0 {
				w.idx.MaxRecordsPerShard = cfg.MaxRecordsPerShard
			}
			// Best-effort: keep TotalRecords consistent even if older index files lacked it.
			sum := 0
			for _, s := range w.idx.Shards {
				sum += s.Records
			}
			if w.idx.TotalRecords < sum {
				w.idx.TotalRecords = sum
			}
		}
	}

	if err := w.openForAppend(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) openForAppend() error {
	last := w.lastShard()
	if last != nil {
		seq := last.Seq
		path := filepath.Join(w.dir, last.File)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		w.curFile = f
		w.curWriter = bufio.NewWriter(f)
		w.curSeq = seq
		w.curRecords = last.Records
		if w.curRecords <= 0 {
			// Repair missing shard counts by scanning the file once.
			w.curRecords = countLines(path)
			for i := range w.idx.Shards {
				if w.idx.Shards[i].Seq == w.curSeq {
					w.idx.Shards[i].Records = w.curRecords
					break
				}
			}
			sum := 0
			for _, s := range w.idx.Shards {
				sum += s.Records
			}
			w.idx.TotalRecords = sum
			_ = SaveIndexAtomic(w.indexPath, w.idx)
		}
		return nil
	}

	if maxSeq := detectMaxSeq(w.dir); maxSeq > 0 {
		// Index missing but shards exist. Rebuild index from disk and resume on the newest shard.
		w.idx = rebuildIndexFromDisk(w.dir, w.maxRecordsPerShard)
		_ = SaveIndexAtomic(w.indexPath, w.idx)
		return w.openForAppend()
	}
	return w.rotateTo(1)
}

func countLines(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Lines can be large because prompt/response are logged verbatim.
	scanner.Buffer(make([]byte, 0, 256*1024), 8*1024*1024)
	n := 0
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
			n++
		}
	}
	return n
}

func detectMaxSeq(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	maxSeq := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		seq := parseShardSeq(e.Name())
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq
}

func rebuildIndexFromDisk(dir string, maxRecordsPerShard int) *Index {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &Index{Version: 1, MaxRecordsPerShard: maxRecordsPerShard}
	}

	shards := make([]Shard, 0, 16)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		seq := parseShardSeq(name)
		if seq <= 0 {
			continue
		}
		n := countLines(filepath.Join(dir, name))
		shards = append(shards, Shard{Seq: seq, File: name, Records: n})
	}
	sort.Slice(shards, func(i, j int) bool { return shards[i].Seq < shards[j].Seq })

	total := 0
	for _, s := range shards {
		total += s.Records
	}

	return &Index{
		Version:            1,
		MaxRecordsPerShard: maxRecordsPerShard,
		Shards:             shards,
		TotalRecords:       total,
	}
}

func parseShardSeq(name string) int {
	// runs-000123.jsonl
	if !strings.HasPrefix(name, "runs-") || !strings.HasSuffix(name, ".jsonl") {
		return 0
	}
	mid := strings.TrimSuffix(strings.TrimPrefix(name, "runs-"), ".jsonl")
	n, err := strconv.Atoi(mid)
	if err != nil {
		return 0
	}
	return n
}

func shardFileName(seq int) string {
	return fmt.Sprintf("runs-%06d.jsonl", seq)
}

func (w *Writer) lastShard() *Shard {
	if w.idx == nil || len(w.idx.Shards) == 0 {
		return nil
	}
	// Shards are append-only; last is newest.
	return &w.idx.Shards[len(w.idx.Shards)-1]
}

func (w *Writer) rotateTo(seq int) error {
	if w.curWriter != nil {
		_ = w.curWriter.Flush()
	}
	if w.curFile != nil {
		_ = w.curFile.Close()
	}

	file := shardFileName(seq)
	f, err := os.OpenFile(filepath.Join(w.dir, file), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	w.curFile = f
	w.curWriter = bufio.NewWriter(f)
	w.curSeq = seq
	w.curRecords = 0

	// Ensure shard is registered in the index.
	if w.idx == nil {
		w.idx = &Index{Version: 1, MaxRecordsPerShard: w.maxRecordsPerShard}
	}
	if w.idx.MaxRecordsPerShard == 0 {
		w.idx.MaxRecordsPerShard = w.maxRecordsPerShard
	}

	found := false
	for i := range w.idx.Shards {
		if w.idx.Shards[i].Seq == seq {
			w.idx.Shards[i].File = file
			found = true
			break
		}
	}
	if !found {
		w.idx.Shards = append(w.idx.Shards, Shard{Seq: seq, File: file, Records: 0})
		sort.Slice(w.idx.Shards, func(i, j int) bool { return w.idx.Shards[i].Seq < w.idx.Shards[j].Seq })
	}
	return SaveIndexAtomic(w.indexPath, w.idx)
}

// AppendJSONLine writes one record line, rotating to a new shard when the
// current one is full.
func (w *Writer) AppendJSONLine(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.curWriter == nil {
		return errors.New("writer not initialized")
	}

	// Rotate only when we are about to write into a full shard. This avoids
	// persisting empty "next" shards in the index.
	if w.curRecords >= w.maxRecordsPerShard {
		if err := w.rotateTo(w.curSeq + 1); err != nil {
			return err
		}
	}

	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil
	}
	if !bytes.HasSuffix(trimmed, []byte("\n")) {
		trimmed = append(trimmed, '\n')
	}

	if _, err := w.curWriter.Write(trimmed); err != nil {
		return err
	}
	if err := w.curWriter.Flush(); err != nil {
		return err
	}

	w.curRecords++
	w.idx.TotalRecords++
	for i := range w.idx.Shards {
		if w.idx.Shards[i].Seq == w.curSeq {
			w.idx.Shards[i].Records = w.curRecords
			break
		}
	}
	return SaveIndexAtomic(w.indexPath, w.idx)
}

// TotalRecords reports the all-time record count from the index.
func (w *Writer) TotalRecords() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.idx == nil {
		return 0
	}
	return w.idx.TotalRecords
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.curWriter != nil {
		err = w.curWriter.Flush()
	}
	if w.curFile != nil {
		closeErr := w.curFile.Close()
		if err == nil {
			err = closeErr
		}
	}
	if w.idx != nil {
		_ = SaveIndexAtomic(w.indexPath, w.idx)
	}
	return err
}
