package scan

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

// HistoryKey is the slot holding the serialized history
const HistoryKey = "barscan_history"

// ErrNotFound is returned by KV.Get when a key has no value
var ErrNotFound = errors.New("key not found")

// KV defines the interface for the local key-value blob store
type KV interface {
	// Get returns the value stored under key, or ErrNotFound
	Get(key string) ([]byte, error)

	// Put stores value under key, replacing any previous value
	Put(key string, value []byte) error

	// Close closes the store
	Close() error
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// HistoryStore persists the scan history as a single blob
type HistoryStore struct {
	kv       KV
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

// NewHistoryStore creates a HistoryStore on top of kv. When compress is set the
// blob is written zstd-compressed; both forms are always readable.
func NewHistoryStore(kv KV, compress bool) (*HistoryStore, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &HistoryStore{
		kv:       kv,
		compress: compress,
		encoder:  encoder,
		decoder:  decoder,
	}, nil
}

// Load returns the stored history, newest first. Missing or unreadable data
// yields an empty history.
func (s *HistoryStore) Load() []Record {
	data, err := s.kv.Get(HistoryKey)
	if errors.Is(err, ErrNotFound) {
		return []Record{}
	}
	if err != nil {
		slog.Error("Failed to read history", "error", err)
		return []Record{}
	}

	history, err := s.decode(data)
	if err != nil {
		slog.Error("Failed to parse history", "error", err)
		return []Record{}
	}
	return history
}

func (s *HistoryStore) decode(data []byte) ([]Record, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		plain, err := s.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing history: %w", err)
		}
		data = plain
	}

	var stored []storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("unmarshaling history: %w", err)
	}

	history := make([]Record, 0, len(stored))
	for i, sr := range stored {
		r := sr.Record
		if r.Format == "" {
			r.Format = sr.ResultFormat
		}
		if r.Format == "" {
			r.Format = UnknownFormat
		}
		// Older entries were identified by timestamp alone
		if r.ID == "" {
			r.ID = fmt.Sprintf("ts-%d-%d", r.Timestamp, i)
		}
		history = append(history, r)
	}
	return history, nil
}

// storedRecord also reads histories written before the format key was
// renamed from resultFormat
type storedRecord struct {
	Record
	ResultFormat string `json:"resultFormat,omitempty"`
}

// Save replaces the stored history
func (s *HistoryStore) Save(history []Record) error {
	if history == nil {
		history = []Record{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}
	if s.compress {
		data = s.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	}
	if err := s.kv.Put(HistoryKey, data); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}

// Observe saves every committed history; it is meant to be registered with
// Service.Subscribe.
func (s *HistoryStore) Observe(history []Record) {
	if err := s.Save(history); err != nil {
		slog.Error("Failed to save history", "records", len(history), "error", err)
	}
}

// Close releases the codec and the underlying store
func (s *HistoryStore) Close() error {
	s.decoder.Close()
	if err := s.encoder.Close(); err != nil {
		slog.Warn("Failed to close zstd encoder", "error", err)
	}
	return s.kv.Close()
}
