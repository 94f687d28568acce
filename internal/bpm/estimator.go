// Package bpm оценивает мгновенную ЧСС по короткому окну сигнала ЭКГ.
package bpm

import (
	"math"
)

const (
	// Порог детекции пика относительно максимума окна
	thresholdRatio = 0.6

	// Минимальная дистанция между пиками в долях секунды.
	// 0.6 с соответствует ритму 100 уд/мин: два принятых пика
	// не могут находиться ближе.
	refractorySec = 0.6
)

// Estimate возвращает оценку ЧСС (уд/мин) по окну сэмплов.
// Возвращает 0, если найдено меньше двух пиков: это признак
// недостаточного сигнала, а не ошибка.
func Estimate(window []float64, sampleRate float64) int {
	if len(window) == 0 || sampleRate <= 0 {
		return 0
	}

	peaks := detectPeaks(window, sampleRate)
	if len(peaks) < 2 {
		return 0
	}

	// Средний RR-интервал в секундах по последовательным пикам
	var sum float64
	for i := 0; i < len(peaks)-1; i++ {
		sum += float64(peaks[i+1]-peaks[i]) / sampleRate
	}
	avgRR := sum / float64(len(peaks)-1)

	if avgRR <= 0 {
		return 0
	}

	return int(math.Round(60 / avgRR))
}

// detectPeaks находит R-пики упрощенным порогово-рефрактерным детектором.
// Принимаются локальные максимумы выше 60% амплитуды окна. Если внутри
// рефрактерного окна встречается кандидат с большей амплитудой, он
// замещает ранее принятый пик, а не отбрасывается.
func detectPeaks(signal []float64, sampleRate float64) []int {
	maxVal := signal[0]
	for _, v := range signal[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	threshold := maxVal * thresholdRatio
	minDist := refractorySec * sampleRate

	var peaks []int
	lastPeak := -minDist

	for i := 1; i < len(signal)-1; i++ {
		v := signal[i]

		if v <= threshold {
			continue
		}

		// Локальный максимум
		if v <= signal[i-1] || v <= signal[i+1] {
			continue
		}

		if float64(i)-lastPeak > minDist {
			peaks = append(peaks, i)
			lastPeak = float64(i)
		} else if len(peaks) > 0 && v > signal[peaks[len(peaks)-1]] {
			peaks[len(peaks)-1] = i
			lastPeak = float64(i)
		}
	}

	return peaks
}
