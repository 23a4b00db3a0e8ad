package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/deepnest-next/gonest/internal/model"
)

// FileName is the log file created inside the cache directory.
const FileName = "nfp.cache"

// EnvCacheDir is consulted when no cache directory is configured.
const EnvCacheDir = "NFP_CACHE_DIR"

var trailerMagic = [8]byte{'N', 'F', 'P', 'I', 'D', 'X', '0', '1'}

// Store is the durable backing for the cache: an append-only log of
// {u32 key_len, key, u32 nfp_len, nfp} records with a trailer index
// written on clean shutdown. A single writer goroutine owns the file;
// readers load once at open.
type Store struct {
	path    string
	entries map[string]storeEntry

	writes  chan storeRecord
	done    chan struct{}
	flushed chan struct{}
	once    sync.Once
	file    *os.File
	records int // written record count, owned by the writer task
}

type storeEntry struct {
	key  Key
	poly *model.Polygon
}

type storeRecord struct {
	key  []byte
	poly []byte
}

// Open loads the log under dir, creating the directory when missing. A
// trailer index, when present and intact, gives the record count; without
// one the log is replayed sequentially, dropping a torn tail.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	path := filepath.Join(dir, FileName)

	s := &Store{
		path:    path,
		entries: make(map[string]storeEntry),
		writes:  make(chan storeRecord, 64),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read cache log: %w", err)
	}
	body := s.load(data)

	// Reopen for appending past the loaded records; a trailer or torn
	// tail is truncated off so new records continue the log cleanly.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open cache log: %w", err)
	}
	if err := f.Truncate(int64(body)); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate cache log: %w", err)
	}
	if _, err := f.Seek(int64(body), io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek cache log: %w", err)
	}
	s.file = f
	s.records = len(s.entries)

	go s.writer()
	return s, nil
}

// load parses the log, preferring the trailer index, and returns the byte
// length of the valid record body.
func (s *Store) load(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	if body, count, ok := readTrailer(data); ok {
		n := s.replay(data[:body], count)
		if n == count {
			return body
		}
		// Trailer lied; fall through to a full replay.
		s.entries = make(map[string]storeEntry)
	}
	body := s.replayAll(data)
	return body
}

// replay reads exactly count records, returning how many parsed cleanly.
func (s *Store) replay(data []byte, count int) int {
	r := bytes.NewReader(data)
	for i := 0; i < count; i++ {
		if !s.readRecord(r) {
			return i
		}
	}
	return count
}

// replayAll reads records until the data ends or turns invalid, and
// returns the offset of the last clean record boundary.
func (s *Store) replayAll(data []byte) int {
	r := bytes.NewReader(data)
	offset := 0
	for r.Len() > 0 {
		if !s.readRecord(r) {
			break
		}
		offset = len(data) - r.Len()
	}
	return offset
}

func (s *Store) readRecord(r *bytes.Reader) bool {
	keyBytes, err := readBytes(r)
	if err != nil {
		return false
	}
	polyBytes, err := readBytes(r)
	if err != nil {
		return false
	}
	key, err := DecodeKey(keyBytes)
	if err != nil {
		return false
	}
	poly, err := DecodePolygon(polyBytes)
	if err != nil {
		return false
	}
	s.entries[key.String()] = storeEntry{key: key, poly: poly}
	return true
}

// Entries returns the loaded records.
func (s *Store) Entries() map[Key]*model.Polygon {
	out := make(map[Key]*model.Polygon, len(s.entries))
	for _, e := range s.entries {
		out[e.key] = e.poly
	}
	return out
}

// Compact rewrites the log keeping only records whose sources are still
// live. Called on engine start before any appends.
func (s *Store) Compact(liveSources map[string]bool) error {
	var kept []storeEntry
	for _, e := range s.entries {
		if liveSources[e.key.ASource] && liveSources[e.key.BSource] {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(s.entries) {
		return nil
	}

	if err := s.file.Truncate(0); err != nil {
		return err
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	dropped := len(s.entries) - len(kept)
	s.entries = make(map[string]storeEntry, len(kept))
	s.records = len(kept)
	for _, e := range kept {
		s.entries[e.key.String()] = e
		if _, err := s.file.Write(encodeRecord(EncodeKey(e.key), EncodePolygon(e.poly))); err != nil {
			return err
		}
	}
	log.Printf("cache: compacted %d stale entries, %d kept", dropped, len(kept))
	return nil
}

// Append queues a record for the writer task. Safe for concurrent use.
func (s *Store) Append(key Key, poly *model.Polygon) {
	rec := storeRecord{key: EncodeKey(key), poly: EncodePolygon(poly)}
	select {
	case s.writes <- rec:
	case <-s.done:
	}
}

func (s *Store) writer() {
	defer close(s.flushed)
	for {
		select {
		case rec := <-s.writes:
			s.writeRecord(rec)
		case <-s.done:
			// Drain whatever was queued before shutdown.
			for {
				select {
				case rec := <-s.writes:
					s.writeRecord(rec)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) writeRecord(rec storeRecord) {
	if _, err := s.file.Write(encodeRecord(rec.key, rec.poly)); err != nil {
		log.Printf("cache: append failed: %v", err)
		return
	}
	s.records++
}

// Close stops the writer task, waits for it to flush, writes the trailer
// index, and closes the file.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		<-s.flushed
		err = s.writeTrailer()
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

func (s *Store) writeTrailer() error {
	stat, err := s.file.Stat()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(stat.Size()))
	buf.Write(b[:])
	binary.LittleEndian.PutUint32(b[:4], uint32(s.records))
	buf.Write(b[:4])
	buf.Write(trailerMagic[:])
	_, err = s.file.Write(buf.Bytes())
	return err
}

// readTrailer validates the 20-byte footer {u64 body_len, u32 count,
// magic8}. Returns the record body length and count.
func readTrailer(data []byte) (body, count int, ok bool) {
	const trailerLen = 20
	if len(data) < trailerLen {
		return 0, 0, false
	}
	tail := data[len(data)-trailerLen:]
	if !bytes.Equal(tail[12:], trailerMagic[:]) {
		return 0, 0, false
	}
	bodyLen := binary.LittleEndian.Uint64(tail[:8])
	n := binary.LittleEndian.Uint32(tail[8:12])
	if int(bodyLen) != len(data)-trailerLen {
		return 0, 0, false
	}
	return int(bodyLen), int(n), true
}

func encodeRecord(key, poly []byte) []byte {
	var buf bytes.Buffer
	writeBytes(&buf, key)
	writeBytes(&buf, poly)
	return buf.Bytes()
}

// ErrNoDir reports that no cache directory is configured anywhere.
var ErrNoDir = errors.New("no cache directory configured")

// Resolve returns the cache directory from the explicit configuration or
// the environment, or ErrNoDir when neither is set.
func Resolve(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		return dir, nil
	}
	return "", ErrNoDir
}
