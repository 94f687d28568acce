// Package timeline восстанавливает непрерывную временную шкалу сигнала
// по батчам и прореживает ее до пригодного для отрисовки числа точек.
package timeline

import (
	"sort"
	"time"
)

// Point представляет одну точку графика
type Point struct {
	XMs int64   `json:"x_ms"`
	YV  float64 `json:"y"`
}

// Result представляет результат восстановления шкалы для диапазона
type Result struct {
	Points     []Point   `json:"points"`
	SkipFactor int       `json:"skip_factor"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

// Reconstructor строит точки графика по упорядоченным прогонам сэмплов
type Reconstructor struct {
	targetPoints int
}

// NewReconstructor создает реконструктор с целевым числом точек на диапазон
func NewReconstructor(targetPoints int) *Reconstructor {
	if targetPoints < 1 {
		targetPoints = 1
	}
	return &Reconstructor{targetPoints: targetPoints}
}

// Build восстанавливает точки диапазона [rangeStart, rangeEnd] по прогонам
// сэмплов runs, упорядоченным по batch_sequence.
//
// Логическое время сэмпла считается от начала записи по накопленному
// счетчику сэмплов при постоянной частоте дискретизации. Реальные паузы
// между приходом батчей сознательно игнорируются: устройство снимает
// сигнал с фиксированной частотой, опаздывать может только доставка.
func (r *Reconstructor) Build(recordingStart time.Time, sampleRate float64, runs [][]float64, rangeStart, rangeEnd time.Time) *Result {
	result := &Result{
		Points:     []Point{},
		SkipFactor: 1,
		StartTime:  rangeStart,
		EndTime:    rangeEnd,
	}

	if len(runs) == 0 || sampleRate <= 0 {
		return result
	}

	totalEstimate := 0
	for _, run := range runs {
		totalEstimate += len(run)
	}
	if totalEstimate == 0 {
		return result
	}

	skip := (totalEstimate + r.targetPoints - 1) / r.targetPoints
	if skip < 1 {
		skip = 1
	}
	result.SkipFactor = skip

	startSec := float64(rangeStart.UnixNano()) / 1e9
	endSec := float64(rangeEnd.UnixNano()) / 1e9
	originSec := float64(recordingStart.UnixNano()) / 1e9
	timePerSample := 1.0 / sampleRate

	// Накопленный счетчик сэмплов образует непрерывную шкалу между батчами
	cumulative := 0

	for _, run := range runs {
		count := len(run)
		if count == 0 {
			continue
		}

		emit := func(idx int, value float64) {
			ts := originSec + float64(cumulative+idx)*timePerSample
			if ts >= startSec && ts <= endSec {
				result.Points = append(result.Points, Point{
					XMs: int64(ts*1000 + 0.5),
					YV:  value,
				})
			}
		}

		if skip > 1 {
			downsampleChunks(run, skip, emit)
		} else {
			for i, value := range run {
				emit(i, value)
			}
		}

		cumulative += count
	}

	// Чанки разных батчей обрабатываются независимо,
	// перед отдачей точки сортируются глобально
	sort.Slice(result.Points, func(i, j int) bool {
		return result.Points[i].XMs < result.Points[j].XMs
	})

	return result
}
