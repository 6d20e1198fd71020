package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"easyentrepreneur/internal/core/id"
	"easyentrepreneur/internal/domain"
)

// CompressionAlgo specifies how a snapshot is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the snapshot size above which zstd is used.
const DefaultCompressThreshold = 4 * 1024

type auditRow struct {
	ID                 id.ID              `db:"id"`
	EntityType         string             `db:"entity_type"`
	EntityID           id.ID              `db:"entity_id"`
	Action             domain.AuditAction `db:"action"`
	UserID             string             `db:"user_id"`
	Snapshot           []byte             `db:"snapshot"`
	SnapshotCompressed []byte             `db:"snapshot_compressed"`
	CompressionAlgo    CompressionAlgo    `db:"compression_algo"`
	CreatedAt          time.Time          `db:"created_at"`
}

// AuditLog writes document snapshots to sys_audit.
// Snapshots larger than the threshold are stored zstd-compressed.
type AuditLog struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ domain.AuditLog = (*AuditLog)(nil)

// NewAuditLog creates an audit log. threshold <= 0 uses DefaultCompressThreshold.
func NewAuditLog(txManager *TxManager, threshold int) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &AuditLog{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: threshold,
	}, nil
}

// Log records an audit entry.
func (a *AuditLog) Log(ctx context.Context, entry domain.AuditEntry) error {
	row := a.encode(entry)
	_, err := a.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_id,
			snapshot, snapshot_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, row.ID, row.EntityType, row.EntityID, row.Action, row.UserID,
		row.Snapshot, row.SnapshotCompressed, row.CompressionAlgo, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the newest entries for an entity first.
func (a *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, entity_type, entity_id, action, user_id,
		       snapshot, snapshot_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var r auditRow
		if err := rows.Scan(&r.ID, &r.EntityType, &r.EntityID, &r.Action, &r.UserID,
			&r.Snapshot, &r.SnapshotCompressed, &r.CompressionAlgo, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry, err := a.decode(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (a *AuditLog) encode(entry domain.AuditEntry) auditRow {
	row := auditRow{
		ID:              entry.ID,
		EntityType:      entry.EntityType,
		EntityID:        entry.EntityID,
		Action:          entry.Action,
		UserID:          entry.UserID,
		Snapshot:        entry.Snapshot,
		CompressionAlgo: CompressionNone,
		CreatedAt:       entry.CreatedAt,
	}
	if id.IsNil(row.ID) {
		row.ID = id.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if len(row.Snapshot) > a.compressThreshold {
		row.SnapshotCompressed = a.encoder.EncodeAll(row.Snapshot, nil)
		row.Snapshot = nil
		row.CompressionAlgo = CompressionZstd
	}
	return row
}

func (a *AuditLog) decode(r auditRow) (domain.AuditEntry, error) {
	snapshot := r.Snapshot
	if r.CompressionAlgo == CompressionZstd && len(r.SnapshotCompressed) > 0 {
		decompressed, err := a.decoder.DecodeAll(r.SnapshotCompressed, nil)
		if err != nil {
			return domain.AuditEntry{}, fmt.Errorf("decompress audit snapshot: %w", err)
		}
		snapshot = decompressed
	}
	return domain.AuditEntry{
		ID:         r.ID,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		Action:     r.Action,
		UserID:     r.UserID,
		Snapshot:   snapshot,
		CreatedAt:  r.CreatedAt,
	}, nil
}
