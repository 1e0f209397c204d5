package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/knowledgeops/internal/domain"
	"github.com/kailas-cloud/knowledgeops/internal/domain/chunk"
	"github.com/kailas-cloud/knowledgeops/internal/domain/document"
	"github.com/kailas-cloud/knowledgeops/internal/domain/record"
)

const documentColumns = `tenant_id, id, department_id, title, source_name, status, chunk_count, error, created_at, updated_at`

// SaveDocument inserts or updates a document row.
func (s *Store) SaveDocument(ctx context.Context, d *document.Document) error {
	return saveDocument(ctx, s.db, d)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveDocument(ctx context.Context, ex execer, d *document.Document) error {
	sn := d.Snapshot()
	_, err := ex.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			department_id = excluded.department_id,
			title = excluded.title,
			source_name = excluded.source_name,
			status = excluded.status,
			chunk_count = excluded.chunk_count,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, sn.TenantID, sn.ID, sn.DepartmentID, sn.Title, sn.SourceName, string(sn.Status),
		sn.ChunkCount, sn.Error, formatTime(sn.CreatedAt), formatTime(sn.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving document %s: %w", sn.ID, err)
	}
	return nil
}

// GetDocument returns a tenant's document.
func (s *Store) GetDocument(ctx context.Context, tenantID, id string) (document.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE tenant_id = ? AND id = ?`, tenantID, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Document{}, domain.ErrDocumentNotFound
	}
	if err != nil {
		return document.Document{}, fmt.Errorf("getting document %s: %w", id, err)
	}
	return d, nil
}

// ListDocuments returns a department's documents, newest first. Empty departmentID lists the whole tenant.
func (s *Store) ListDocuments(ctx context.Context, tenantID, departmentID string) ([]document.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE tenant_id = ?`
	args := []any{tenantID}
	if departmentID != "" {
		q += ` AND department_id = ?`
		args = append(args, departmentID)
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var out []document.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document and, by cascade, its chunk rows.
func (s *Store) DeleteDocument(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// CompleteIngestion atomically replaces the chunk mirror rows and saves the (indexed) document.
func (s *Store) CompleteIngestion(ctx context.Context, d *document.Document, chunks []chunk.Chunk) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunks WHERE tenant_id = ? AND document_id = ?`, d.TenantID(), d.ID()); err != nil {
			return fmt.Errorf("clearing chunks of %s: %w", d.ID(), err)
		}

		if err := saveDocument(ctx, tx, d); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (tenant_id, document_id, chunk_index, record_id, content, token_count, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing chunk insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range chunks {
			meta, err := json.Marshal(c.Metadata)
			if err != nil {
				return fmt.Errorf("marshaling chunk metadata: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, d.TenantID(), d.ID(), c.Index,
				record.ChunkID(d.TenantID(), d.ID(), c.Index), c.Content, c.TokenCount, string(meta)); err != nil {
				return fmt.Errorf("inserting chunk %d of %s: %w", c.Index, d.ID(), err)
			}
		}
		return nil
	})
}

// ListChunks returns a document's chunk mirror rows in index order.
func (s *Store) ListChunks(ctx context.Context, tenantID, documentID string) ([]chunk.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_index, content, token_count, metadata FROM chunks
		WHERE tenant_id = ? AND document_id = ? ORDER BY chunk_index
	`, tenantID, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var out []chunk.Chunk
	for rows.Next() {
		c := chunk.Chunk{DocumentID: documentID}
		var meta string
		if err := rows.Scan(&c.Index, &c.Content, &c.TokenCount, &meta); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("decoding chunk metadata: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (document.Document, error) {
	var sn document.Snapshot
	var status, created, updated string
	if err := sc.Scan(&sn.TenantID, &sn.ID, &sn.DepartmentID, &sn.Title, &sn.SourceName,
		&status, &sn.ChunkCount, &sn.Error, &created, &updated); err != nil {
		return document.Document{}, err
	}
	sn.Status = document.Status(status)
	sn.CreatedAt = parseTime(created)
	sn.UpdatedAt = parseTime(updated)
	return document.Reconstruct(sn), nil
}
