package marker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrMarkerNotFound возвращается, когда отметка не найдена
var ErrMarkerNotFound = errors.New("marker not found")

// PostgresRepository реализует Repository для PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository создает новый экземпляр PostgresRepository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

const markerColumns = `
	id, recording_id, marker_type, batch_sequence,
	sample_index_start, sample_index_end, timestamp_start, timestamp_end,
	label, description, severity, created_by, created_at, updated_at
`

func (r *PostgresRepository) CreateMarker(ctx context.Context, m *Marker) error {
	query := `
		INSERT INTO ekg_markers (
			recording_id, marker_type, batch_sequence,
			sample_index_start, sample_index_end, timestamp_start, timestamp_end,
			label, description, severity, created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		m.RecordingID,
		m.MarkerType,
		m.BatchSequence,
		m.SampleIndexStart,
		m.SampleIndexEnd,
		m.TimestampStart,
		m.TimestampEnd,
		m.Label,
		m.Description,
		m.Severity,
		m.CreatedBy,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create marker: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetMarker(ctx context.Context, id int64) (*Marker, error) {
	query := `SELECT ` + markerColumns + ` FROM ekg_markers WHERE id = $1`

	var m Marker

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.RecordingID,
		&m.MarkerType,
		&m.BatchSequence,
		&m.SampleIndexStart,
		&m.SampleIndexEnd,
		&m.TimestampStart,
		&m.TimestampEnd,
		&m.Label,
		&m.Description,
		&m.Severity,
		&m.CreatedBy,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMarkerNotFound
		}
		return nil, fmt.Errorf("failed to get marker: %w", err)
	}

	return &m, nil
}

func (r *PostgresRepository) ListMarkers(ctx context.Context, recordingID int64, markerType, severity string) ([]*Marker, error) {
	query := `
		SELECT ` + markerColumns + `
		FROM ekg_markers
		WHERE recording_id = $1
			AND ($2 = '' OR marker_type = $2)
			AND ($3 = '' OR severity = $3)
		ORDER BY timestamp_start ASC
	`

	rows, err := r.db.QueryContext(ctx, query, recordingID, markerType, severity)
	if err != nil {
		return nil, fmt.Errorf("failed to list markers: %w", err)
	}
	defer rows.Close()

	var markers []*Marker

	for rows.Next() {
		var m Marker

		err := rows.Scan(
			&m.ID,
			&m.RecordingID,
			&m.MarkerType,
			&m.BatchSequence,
			&m.SampleIndexStart,
			&m.SampleIndexEnd,
			&m.TimestampStart,
			&m.TimestampEnd,
			&m.Label,
			&m.Description,
			&m.Severity,
			&m.CreatedBy,
			&m.CreatedAt,
			&m.UpdatedAt,
		)

		if err != nil {
			continue
		}

		markers = append(markers, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate markers: %w", err)
	}

	return markers, nil
}

func (r *PostgresRepository) UpdateMarker(ctx context.Context, m *Marker) (bool, error) {
	query := `
		UPDATE ekg_markers
		SET marker_type = $2, label = $3, description = $4, severity = $5, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, m.ID, m.MarkerType, m.Label, m.Description, m.Severity)
	if err != nil {
		return false, fmt.Errorf("failed to update marker: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *PostgresRepository) DeleteMarker(ctx context.Context, id int64) (bool, error) {
	query := `DELETE FROM ekg_markers WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete marker: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
