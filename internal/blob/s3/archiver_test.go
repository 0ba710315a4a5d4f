package s3blob

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/winfall/claimkeeper/internal/domain"
)

// memStore serves a fixed batch from ListBefore and records which IDs get
// deleted, standing in for a store where rows beyond the batch limit share
// the last row's settled_at.
type memStore struct {
	batch   []domain.SettlementRecord
	deleted []string
}

func (s *memStore) Record(ctx context.Context, rec domain.SettlementRecord) error { return nil }
func (s *memStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.SettlementRecord, error) {
	return nil, nil
}
func (s *memStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.SettlementRecord, error) {
	return s.batch, nil
}
func (s *memStore) Delete(ctx context.Context, ids []string) (int64, error) {
	s.deleted = append(s.deleted, ids...)
	return int64(len(ids)), nil
}

type memWriter struct {
	puts int
	data []byte
	err  error
}

func (w *memWriter) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if w.err != nil {
		return w.err
	}
	w.puts++
	w.data = data
	return nil
}

func settlementAt(id string, ts time.Time) domain.SettlementRecord {
	return domain.SettlementRecord{
		ID:        id,
		Domain:    domain.DomainRaffleConsolation,
		SeasonID:  1,
		Account:   "0xbbb",
		Amount:    "1000",
		TxHash:    "0xhash",
		Source:    domain.SettlementSourceLocal,
		SettledAt: ts,
	}
}

func TestArchivePrunesOnlyUploadedRows(t *testing.T) {
	// Three rows share one settled_at; the store's batch limit returned only
	// two of them. The third must survive the prune for the next pass.
	ts := time.Now().UTC().Add(-120 * 24 * time.Hour)
	store := &memStore{batch: []domain.SettlementRecord{
		settlementAt("a", ts),
		settlementAt("b", ts),
	}}
	writer := &memWriter{}

	arch := NewArchiver(writer, store, 90*24*time.Hour, slog.New(slog.DiscardHandler))
	n, err := arch.Archive(context.Background())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if n != 2 {
		t.Errorf("archived = %d, want 2", n)
	}
	if writer.puts != 1 {
		t.Errorf("uploads = %d, want 1", writer.puts)
	}

	if len(store.deleted) != 2 {
		t.Fatalf("deleted ids = %v, want exactly the uploaded batch", store.deleted)
	}
	for i, want := range []string{"a", "b"} {
		if store.deleted[i] != want {
			t.Errorf("deleted[%d] = %q, want %q", i, store.deleted[i], want)
		}
	}

	// Every uploaded row appears in the JSONL payload, one object per line.
	if got := bytes.Count(writer.data, []byte("\n")); got != 2 {
		t.Errorf("jsonl lines = %d, want 2", got)
	}
}

func TestArchiveNothingToArchive(t *testing.T) {
	store := &memStore{}
	writer := &memWriter{}

	arch := NewArchiver(writer, store, 90*24*time.Hour, slog.New(slog.DiscardHandler))
	n, err := arch.Archive(context.Background())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if n != 0 || writer.puts != 0 || len(store.deleted) != 0 {
		t.Errorf("empty pass performed work: n=%d puts=%d deleted=%v", n, writer.puts, store.deleted)
	}
}

func TestArchiveUploadFailureLeavesRows(t *testing.T) {
	ts := time.Now().UTC().Add(-120 * 24 * time.Hour)
	store := &memStore{batch: []domain.SettlementRecord{settlementAt("a", ts)}}
	writer := &memWriter{err: errors.New("bucket unreachable")}

	arch := NewArchiver(writer, store, 90*24*time.Hour, slog.New(slog.DiscardHandler))
	if _, err := arch.Archive(context.Background()); err == nil {
		t.Fatal("expected upload error")
	}
	if len(store.deleted) != 0 {
		t.Errorf("rows deleted after failed upload: %v", store.deleted)
	}
}
