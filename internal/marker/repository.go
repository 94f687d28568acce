package marker

import "context"

// Repository определяет контракт хранилища отметок
type Repository interface {
	// CreateMarker сохраняет отметку и возвращает ее с присвоенным ID
	CreateMarker(ctx context.Context, m *Marker) error

	// GetMarker возвращает отметку по ID
	GetMarker(ctx context.Context, id int64) (*Marker, error)

	// ListMarkers возвращает отметки записи, отсортированные по timestamp_start.
	// Пустые markerType/severity означают отсутствие фильтра.
	ListMarkers(ctx context.Context, recordingID int64, markerType, severity string) ([]*Marker, error)

	// UpdateMarker обновляет изменяемые поля отметки
	UpdateMarker(ctx context.Context, m *Marker) (bool, error)

	// DeleteMarker удаляет отметку
	DeleteMarker(ctx context.Context, id int64) (bool, error)
}
