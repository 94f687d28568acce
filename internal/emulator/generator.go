// Package emulator имитирует носимый регистратор ЭКГ: генерирует
// синтетический сигнал и отправляет его батчами на сервер приема.
package emulator

import "math"

// Generator генерирует синтетический сигнал ЭКГ.
// Форма не клиническая: базовая линия + гауссовы P/QRS/T волны + шум.
type Generator struct {
	sampleRate float64
	heartRate  float64
	noise      float64
	phase      float64
}

// NewGenerator создает генератор. Типичный heartRate 60-120, noise 0.0-0.05
func NewGenerator(sampleRate, heartRate, noise float64) *Generator {
	return &Generator{
		sampleRate: sampleRate,
		heartRate:  heartRate,
		noise:      noise,
	}
}

// Next возвращает следующий сэмпл и продвигает фазу цикла
func (g *Generator) Next() float64 {
	cycleHz := g.heartRate / 60.0
	g.phase += cycleHz / g.sampleRate
	if g.phase >= 1.0 {
		g.phase -= 1.0
	}

	t := g.phase

	// Дыхательная волна базовой линии
	baseline := 0.05 * math.Sin(2*math.Pi*0.33*t)

	// P, QRS, T как гауссианы
	p := 0.08 * gauss(t, 0.18, 0.03)
	q := -0.12 * gauss(t, 0.30, 0.01)
	r := 1.00 * gauss(t, 0.32, 0.008)
	s := -0.25 * gauss(t, 0.35, 0.012)
	tw := 0.25 * gauss(t, 0.60, 0.06)

	// Дешевый детерминированный шум
	n := g.noise * (2*fract(math.Sin(12345.678*t)*9876.543) - 1)

	return baseline + p + q + r + s + tw + n
}

// NextBatch возвращает очередные count сэмплов
func (g *Generator) NextBatch(count int) []float64 {
	samples := make([]float64, count)
	for i := range samples {
		samples[i] = g.Next()
	}
	return samples
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

func fract(x float64) float64 { return x - math.Floor(x) }
