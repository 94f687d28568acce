package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/srwicak/unastelemed/internal/emulator"
)

func main() {
	var (
		serverURL       = flag.String("server", "http://localhost:8080", "Адрес сервера приема")
		deviceID        = flag.String("device", "emulator-001", "Идентификатор устройства")
		sampleRate      = flag.Float64("rate", 400, "Частота дискретизации, Гц")
		heartRate       = flag.Float64("bpm", 72, "Частота сердечных сокращений")
		noise           = flag.Float64("noise", 0.02, "Амплитуда шума")
		samplesPerBatch = flag.Int("batch-size", 5000, "Сэмплов в батче")
		batches         = flag.Int("batches", 10, "Число батчей до остановки (0 = до прерывания)")
		duplicateEvery  = flag.Int("duplicate-every", 0, "Повторно отправлять каждый N-й батч")
		dropEvery       = flag.Int("drop-every", 0, "Терять каждый N-й батч и дозаливать через recover_data")
	)
	flag.Parse()

	device := emulator.NewDevice(emulator.Options{
		BaseURL:         *serverURL,
		SampleRate:      *sampleRate,
		HeartRate:       *heartRate,
		Noise:           *noise,
		SamplesPerBatch: *samplesPerBatch,
		DuplicateEvery:  *duplicateEvery,
		DropEvery:       *dropEvery,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("[EMULATOR] Interrupted, stopping recording")
		cancel()
	}()

	if err := device.Start(ctx, *deviceID); err != nil {
		log.Fatalf("Failed to start recording: %v", err)
	}

	// Интервал отправки соответствует реальному времени батча
	interval := time.Duration(float64(*samplesPerBatch) / *sampleRate * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0

loop:
	for *batches == 0 || sent < *batches {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			if err := device.SendBatch(ctx); err != nil {
				log.Printf("[ERROR] %v", err)
			}
			sent++
		}
	}

	// Дозаливка потерянных батчей перед остановкой
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := device.Recover(shutdownCtx); err != nil {
		log.Printf("[ERROR] %v", err)
	}

	if err := device.Stop(shutdownCtx, 1); err != nil {
		log.Fatalf("Failed to stop recording: %v", err)
	}
}
