package timeline

// downsampleChunks прореживает сигнал по чанкам размера skip, сохраняя
// локальные экстремумы. Из каждого чанка эмитятся минимум и максимум в
// хронологическом порядке их появления внутри чанка: острые пики QRS,
// которые стер бы наивный шаговый отбор, остаются на графике.
func downsampleChunks(samples []float64, skip int, emit func(idx int, value float64)) {
	count := len(samples)

	for i := 0; i < count; i += skip {
		chunkEnd := i + skip
		if chunkEnd > count {
			chunkEnd = count
		}

		minIdx, maxIdx := chunkExtremes(samples[i:chunkEnd])

		if minIdx < maxIdx {
			emit(i+minIdx, samples[i+minIdx])
			emit(i+maxIdx, samples[i+maxIdx])
		} else {
			emit(i+maxIdx, samples[i+maxIdx])
			emit(i+minIdx, samples[i+minIdx])
		}
	}
}

// chunkExtremes возвращает индексы первого минимума и первого максимума чанка
func chunkExtremes(chunk []float64) (minIdx, maxIdx int) {
	for i, v := range chunk {
		if v < chunk[minIdx] {
			minIdx = i
		}
		if v > chunk[maxIdx] {
			maxIdx = i
		}
	}
	return minIdx, maxIdx
}
