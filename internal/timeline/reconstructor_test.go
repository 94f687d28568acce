package timeline

import (
	"testing"
	"time"
)

var testStart = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestBuild_PassThroughWithoutDownsampling(t *testing.T) {
	r := NewReconstructor(100)

	runs := [][]float64{{1, 2, 3}, {4, 5}}
	res := r.Build(testStart, 10, runs, testStart, testStart.Add(time.Minute))

	if res.SkipFactor != 1 {
		t.Errorf("Expected skip factor 1, got %d", res.SkipFactor)
	}
	if len(res.Points) != 5 {
		t.Fatalf("Expected 5 points, got %d", len(res.Points))
	}

	// Шкала непрерывна между батчами: каждый сэмпл на 100мс позже предыдущего
	base := testStart.UnixMilli()
	for i, p := range res.Points {
		want := base + int64(i*100)
		if p.XMs != want {
			t.Errorf("Point %d: expected x=%d, got %d", i, want, p.XMs)
		}
	}
	if res.Points[3].YV != 4 {
		t.Errorf("Expected second run to continue the timeline, got y=%v", res.Points[3].YV)
	}
}

func TestBuild_SkipFactor(t *testing.T) {
	r := NewReconstructor(10)

	// 95 сэмплов при цели 10 точек: skip = ceil(95/10) = 10
	run := make([]float64, 95)
	res := r.Build(testStart, 400, [][]float64{run}, testStart, testStart.Add(time.Minute))

	if res.SkipFactor != 10 {
		t.Errorf("Expected skip factor 10, got %d", res.SkipFactor)
	}
}

func TestDownsampleChunks_PreservesExtremesInOrder(t *testing.T) {
	// Максимум (индекс 1) раньше минимума (индекс 3):
	// порядок эмиссии должен быть хронологическим
	samples := []float64{1, 9, 3, -4, 2}

	type emitted struct {
		idx   int
		value float64
	}
	var got []emitted

	downsampleChunks(samples, 5, func(idx int, value float64) {
		got = append(got, emitted{idx, value})
	})

	if len(got) != 2 {
		t.Fatalf("Expected 2 emitted points, got %d", len(got))
	}
	if got[0].idx != 1 || got[0].value != 9 {
		t.Errorf("Expected max (idx=1, v=9) first, got idx=%d v=%v", got[0].idx, got[0].value)
	}
	if got[1].idx != 3 || got[1].value != -4 {
		t.Errorf("Expected min (idx=3, v=-4) second, got idx=%d v=%v", got[1].idx, got[1].value)
	}
}

func TestDownsampleChunks_MinBeforeMax(t *testing.T) {
	samples := []float64{5, -7, 2, 8, 1}

	var values []float64
	downsampleChunks(samples, 5, func(idx int, value float64) {
		values = append(values, value)
	})

	if len(values) != 2 || values[0] != -7 || values[1] != 8 {
		t.Errorf("Expected [-7 8], got %v", values)
	}
}

func TestDownsampleChunks_TailChunkShorterThanSkip(t *testing.T) {
	samples := []float64{1, 2, 3, 4, 5, 6, 7}

	var count int
	downsampleChunks(samples, 5, func(idx int, value float64) {
		count++
	})

	// Два чанка (5+2), из каждого по две точки
	if count != 4 {
		t.Errorf("Expected 4 emitted points, got %d", count)
	}
}

func TestBuild_ClipsToRange(t *testing.T) {
	r := NewReconstructor(1000)

	// 100 сэмплов по 1 Гц = 100 секунд сигнала, диапазон накрывает 10-19с
	run := make([]float64, 100)
	for i := range run {
		run[i] = float64(i)
	}

	rangeStart := testStart.Add(10 * time.Second)
	rangeEnd := testStart.Add(19 * time.Second)

	res := r.Build(testStart, 1, [][]float64{run}, rangeStart, rangeEnd)

	if len(res.Points) != 10 {
		t.Fatalf("Expected 10 points in range, got %d", len(res.Points))
	}
	if res.Points[0].YV != 10 || res.Points[9].YV != 19 {
		t.Errorf("Expected samples 10..19, got first=%v last=%v", res.Points[0].YV, res.Points[9].YV)
	}
}

func TestBuild_PointsSortedAcrossRuns(t *testing.T) {
	r := NewReconstructor(4)

	// Прореживание в каждом прогоне идет отдельно, но результат
	// должен быть отсортирован по времени глобально
	runs := [][]float64{
		{0, 5, -5, 1},
		{2, 9, -9, 3},
	}
	res := r.Build(testStart, 4, runs, testStart, testStart.Add(time.Minute))

	for i := 1; i < len(res.Points); i++ {
		if res.Points[i].XMs < res.Points[i-1].XMs {
			t.Fatalf("Points not sorted at %d: %d < %d", i, res.Points[i].XMs, res.Points[i-1].XMs)
		}
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	r := NewReconstructor(100)

	res := r.Build(testStart, 400, nil, testStart, testStart.Add(time.Minute))
	if res == nil {
		t.Fatalf("Expected empty result, got nil")
	}
	if len(res.Points) != 0 {
		t.Errorf("Expected no points, got %d", len(res.Points))
	}
	if res.SkipFactor != 1 {
		t.Errorf("Expected skip factor 1, got %d", res.SkipFactor)
	}
}
