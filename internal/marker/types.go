// Package marker хранит врачебные отметки на сигнале ЭКГ.
// Отметка адресуется парой (batch_sequence, индекс внутри батча);
// глобальный индекс сэмпла вычисляется через samples_per_batch записи.
package marker

import (
	"fmt"
	"time"
)

// Типы отметок ЭКГ
const (
	TypeNormal                        = "normal"
	TypeArrhythmia                    = "arrhythmia"
	TypeArtifact                      = "artifact"
	TypeAnnotation                    = "annotation"
	TypePWave                         = "p_wave"
	TypeQRSComplex                    = "qrs_complex"
	TypeTWave                         = "t_wave"
	TypeSTSegment                     = "st_segment"
	TypePRInterval                    = "pr_interval"
	TypeQTInterval                    = "qt_interval"
	TypeAtrialFibrillation            = "atrial_fibrillation"
	TypeVentricularTachycardia        = "ventricular_tachycardia"
	TypeVentricularFibrillation       = "ventricular_fibrillation"
	TypePrematureVentricularContract  = "premature_ventricular_contraction"
	TypePrematureAtrialContraction    = "premature_atrial_contraction"
	TypeBundleBranchBlock             = "bundle_branch_block"
	TypeAVBlock                       = "av_block"
	TypeSinusBradycardia              = "sinus_bradycardia"
	TypeSinusTachycardia              = "sinus_tachycardia"
	TypePacemakerSpike                = "pacemaker_spike"
	TypeBaselineWander                = "baseline_wander"
	TypeMuscleArtifact                = "muscle_artifact"
	TypeOther                         = "other"
)

// Уровни важности отметки
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

var markerTypes = map[string]bool{
	TypeNormal:                       true,
	TypeArrhythmia:                   true,
	TypeArtifact:                     true,
	TypeAnnotation:                   true,
	TypePWave:                        true,
	TypeQRSComplex:                   true,
	TypeTWave:                        true,
	TypeSTSegment:                    true,
	TypePRInterval:                   true,
	TypeQTInterval:                   true,
	TypeAtrialFibrillation:           true,
	TypeVentricularTachycardia:       true,
	TypeVentricularFibrillation:      true,
	TypePrematureVentricularContract: true,
	TypePrematureAtrialContraction:   true,
	TypeBundleBranchBlock:            true,
	TypeAVBlock:                      true,
	TypeSinusBradycardia:             true,
	TypeSinusTachycardia:             true,
	TypePacemakerSpike:               true,
	TypeBaselineWander:               true,
	TypeMuscleArtifact:               true,
	TypeOther:                        true,
}

var severities = map[string]bool{
	SeverityLow:      true,
	SeverityMedium:   true,
	SeverityHigh:     true,
	SeverityCritical: true,
}

// Marker представляет отметку врача на участке сигнала
type Marker struct {
	ID               int64     `json:"id"`
	RecordingID      int64     `json:"recording_id"`
	MarkerType       string    `json:"marker_type"`
	BatchSequence    int       `json:"batch_sequence"`
	SampleIndexStart int       `json:"sample_index_start"`
	SampleIndexEnd   int       `json:"sample_index_end"`
	TimestampStart   time.Time `json:"timestamp_start"`
	TimestampEnd     time.Time `json:"timestamp_end"`
	Label            string    `json:"label,omitempty"`
	Description      string    `json:"description,omitempty"`
	Severity         string    `json:"severity"`
	CreatedBy        string    `json:"created_by,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Validate проверяет поля отметки перед сохранением
func (m *Marker) Validate() error {
	if !markerTypes[m.MarkerType] {
		return fmt.Errorf("unknown marker type %q", m.MarkerType)
	}
	if m.Severity == "" {
		m.Severity = SeverityLow
	}
	if !severities[m.Severity] {
		return fmt.Errorf("unknown severity %q", m.Severity)
	}
	if m.BatchSequence < 0 {
		return fmt.Errorf("batch_sequence must be non-negative")
	}
	if m.SampleIndexStart < 0 {
		return fmt.Errorf("sample_index_start must be non-negative")
	}
	if m.SampleIndexEnd <= m.SampleIndexStart {
		return fmt.Errorf("sample_index_end must be greater than sample_index_start")
	}
	if !m.TimestampEnd.After(m.TimestampStart) {
		return fmt.Errorf("timestamp_end must be after timestamp_start")
	}
	return nil
}

// GlobalSampleStart возвращает индекс первого сэмпла отметки на общей шкале записи.
// Размер батча у каждой записи свой, поэтому он передается явно.
func (m *Marker) GlobalSampleStart(samplesPerBatch int) int {
	return m.BatchSequence*samplesPerBatch + m.SampleIndexStart
}

// GlobalSampleEnd возвращает индекс последнего сэмпла отметки на общей шкале записи
func (m *Marker) GlobalSampleEnd(samplesPerBatch int) int {
	return m.BatchSequence*samplesPerBatch + m.SampleIndexEnd
}

// SampleCount возвращает число сэмплов, покрытых отметкой
func (m *Marker) SampleCount() int {
	return m.SampleIndexEnd - m.SampleIndexStart + 1
}

// DurationMs возвращает длительность отметки в миллисекундах
func (m *Marker) DurationMs() float64 {
	return float64(m.TimestampEnd.Sub(m.TimestampStart)) / float64(time.Millisecond)
}

// Overlaps сообщает, пересекается ли отметка с другой внутри одного батча
func (m *Marker) Overlaps(other *Marker) bool {
	if m.BatchSequence != other.BatchSequence {
		return false
	}
	return m.SampleIndexStart <= other.SampleIndexEnd && m.SampleIndexEnd >= other.SampleIndexStart
}

// Color возвращает цвет отметки для интерфейса просмотра
func (m *Marker) Color() string {
	switch m.Severity {
	case SeverityMedium:
		return "#fbbf24"
	case SeverityHigh:
		return "#f97316"
	case SeverityCritical:
		return "#ef4444"
	default:
		return "#22c55e"
	}
}

// Summary агрегирует отметки записи по типам и важности
type Summary struct {
	TotalMarkers      int            `json:"total_markers"`
	ByType            map[string]int `json:"by_type"`
	BySeverity        map[string]int `json:"by_severity"`
	HighPriorityCount int            `json:"high_priority_count"`
	CriticalMarkers   []*Marker      `json:"critical_markers"`
}

// BuildSummary строит сводку по списку отметок
func BuildSummary(markers []*Marker) *Summary {
	s := &Summary{
		TotalMarkers: len(markers),
		ByType:       make(map[string]int),
		BySeverity:   make(map[string]int),
	}
	for _, m := range markers {
		s.ByType[m.MarkerType]++
		s.BySeverity[m.Severity]++
		if m.Severity == SeverityHigh || m.Severity == SeverityCritical {
			s.HighPriorityCount++
		}
		if m.Severity == SeverityCritical {
			s.CriticalMarkers = append(s.CriticalMarkers, m)
		}
	}
	return s
}
