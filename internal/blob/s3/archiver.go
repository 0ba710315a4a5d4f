package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/winfall/claimkeeper/internal/domain"
)

// archiveBatchSize caps how many settlement rows one archive pass pulls.
const archiveBatchSize = 10_000

// Archiver moves settlement history older than a retention window out of the
// primary store into object storage as JSONL. Rows are deleted only after the
// upload succeeds.
type Archiver struct {
	writer    domain.BlobWriter
	store     domain.SettlementStore
	retention time.Duration
	logger    *slog.Logger
}

// NewArchiver creates an Archiver with the given retention window.
func NewArchiver(writer domain.BlobWriter, store domain.SettlementStore, retention time.Duration, logger *slog.Logger) *Archiver {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &Archiver{
		writer:    writer,
		store:     store,
		retention: retention,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// Archive performs one archival pass: rows settled before now-retention are
// serialized to JSONL, uploaded under settlements/YYYY/MM/DD/, and pruned.
// It returns the number of rows archived.
func (a *Archiver) Archive(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-a.retention)

	rows, err := a.store.ListBefore(ctx, cutoff, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: list settlements for archive: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	ids := make([]string, 0, len(rows))
	for _, rec := range rows {
		if err := enc.Encode(rec); err != nil {
			return 0, fmt.Errorf("s3blob: encode settlement %s: %w", rec.ID, err)
		}
		ids = append(ids, rec.ID)
	}

	key := fmt.Sprintf("settlements/%s/%d.jsonl",
		cutoff.Format("2006/01/02"), time.Now().UTC().UnixNano())
	if err := a.writer.Put(ctx, key, buf.Bytes(), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: upload archive: %w", err)
	}

	// Prune exactly the uploaded rows. Rows sharing the last settled_at that
	// fell beyond the batch limit ride into the next pass.
	deleted, err := a.store.Delete(ctx, ids)
	if err != nil {
		return len(rows), fmt.Errorf("s3blob: prune archived settlements: %w", err)
	}

	a.logger.InfoContext(ctx, "settlement history archived",
		slog.Int("rows", len(rows)),
		slog.Int64("deleted", deleted),
		slog.String("key", key),
	)
	return len(rows), nil
}

// RunLoop runs Archive on the given interval until the context is cancelled.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.Archive(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
