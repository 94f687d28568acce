package marker

import (
	"testing"
	"time"
)

func validMarker() *Marker {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return &Marker{
		RecordingID:      1,
		MarkerType:       TypeArrhythmia,
		BatchSequence:    3,
		SampleIndexStart: 100,
		SampleIndexEnd:   250,
		TimestampStart:   start,
		TimestampEnd:     start.Add(time.Second),
		Severity:         SeverityHigh,
	}
}

func TestMarker_Validate(t *testing.T) {
	if err := validMarker().Validate(); err != nil {
		t.Fatalf("Valid marker rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(m *Marker)
	}{
		{"unknown type", func(m *Marker) { m.MarkerType = "heartquake" }},
		{"unknown severity", func(m *Marker) { m.Severity = "extreme" }},
		{"negative batch", func(m *Marker) { m.BatchSequence = -1 }},
		{"negative index", func(m *Marker) { m.SampleIndexStart = -1 }},
		{"end before start index", func(m *Marker) { m.SampleIndexEnd = m.SampleIndexStart }},
		{"end before start time", func(m *Marker) { m.TimestampEnd = m.TimestampStart }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := validMarker()
			tc.mutate(m)
			if err := m.Validate(); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}

func TestMarker_ValidateDefaultsSeverity(t *testing.T) {
	m := validMarker()
	m.Severity = ""

	if err := m.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if m.Severity != SeverityLow {
		t.Errorf("Expected severity defaulted to low, got %s", m.Severity)
	}
}

func TestMarker_GlobalSampleIndex(t *testing.T) {
	m := validMarker()

	// Глобальный индекс зависит от размера батча конкретной записи
	if got := m.GlobalSampleStart(5000); got != 3*5000+100 {
		t.Errorf("GlobalSampleStart(5000) = %d, want %d", got, 3*5000+100)
	}
	if got := m.GlobalSampleEnd(2000); got != 3*2000+250 {
		t.Errorf("GlobalSampleEnd(2000) = %d, want %d", got, 3*2000+250)
	}
	if got := m.SampleCount(); got != 151 {
		t.Errorf("SampleCount() = %d, want 151", got)
	}
}

func TestMarker_Overlaps(t *testing.T) {
	a := validMarker()

	b := validMarker()
	b.SampleIndexStart = 200
	b.SampleIndexEnd = 300

	if !a.Overlaps(b) {
		t.Errorf("Expected overlap within the same batch")
	}

	b.BatchSequence = 4
	if a.Overlaps(b) {
		t.Errorf("Markers in different batches must not overlap")
	}

	c := validMarker()
	c.SampleIndexStart = 251
	c.SampleIndexEnd = 300
	if a.Overlaps(c) {
		t.Errorf("Disjoint index ranges must not overlap")
	}
}

func TestBuildSummary(t *testing.T) {
	critical := validMarker()
	critical.Severity = SeverityCritical

	markers := []*Marker{validMarker(), validMarker(), critical}
	markers[1].MarkerType = TypeArtifact
	markers[1].Severity = SeverityLow

	s := BuildSummary(markers)

	if s.TotalMarkers != 3 {
		t.Errorf("Expected 3 markers, got %d", s.TotalMarkers)
	}
	if s.ByType[TypeArrhythmia] != 2 || s.ByType[TypeArtifact] != 1 {
		t.Errorf("Unexpected type counts: %v", s.ByType)
	}
	if s.HighPriorityCount != 2 {
		t.Errorf("Expected 2 high priority markers, got %d", s.HighPriorityCount)
	}
	if len(s.CriticalMarkers) != 1 {
		t.Errorf("Expected 1 critical marker, got %d", len(s.CriticalMarkers))
	}
}
