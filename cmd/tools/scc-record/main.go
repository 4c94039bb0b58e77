// scc-record пишет синтетическую запись SCC и дописывает в нее кадры с
// заданным периодом, имитируя живую запись для проверки стриминга.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/scc-replay/internal/logging"
	"github.com/annel0/scc-replay/internal/recorder"
)

func main() {
	var (
		out      = flag.String("out", "recording.scc", "файл записи")
		entities = flag.Int("entities", 6, "число сущностей")
		frames   = flag.Int("frames", 0, "сколько кадров записать; 0: до сигнала")
		initial  = flag.Int("initial", 5, "кадров сразу после заголовка")
		interval = flag.Duration("interval", time.Second, "период дописывания кадров")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "сид генератора")
	)
	flag.Parse()

	if err := logging.InitDefaultLogger("recorder"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	f, err := os.Create(*out)
	if err != nil {
		logging.Error("❌ Не удалось создать %s: %v", *out, err)
		os.Exit(1)
	}
	defer f.Close()

	rng := rand.New(rand.NewSource(*seed))
	rec := recorder.New(f, recorder.RandomEntities(*entities, rng), recorder.NewMotion(*seed))
	if err := rec.WriteHeader(); err != nil {
		logging.Error("❌ Запись заголовка: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := func() bool { return *frames > 0 && rec.Frames() >= *frames }
	for i := 0; i < *initial && !done(); i++ {
		if err := rec.WriteFrame(float64(rec.Frames())); err != nil {
			logging.Error("❌ Запись кадра: %v", err)
			os.Exit(1)
		}
	}
	logging.Info("🎥 %s: %d сущностей, seed=%d, кадр каждые %s", *out, *entities, *seed, *interval)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for !done() {
		select {
		case <-ctx.Done():
			logging.Info("⏹ Записано %d кадров", rec.Frames())
			return
		case <-ticker.C:
			if err := rec.WriteFrame(float64(rec.Frames())); err != nil {
				logging.Error("❌ Запись кадра: %v", err)
				return
			}
			logging.Debug("кадр %d", rec.Frames())
		}
	}
	logging.Info("✅ Записано %d кадров", rec.Frames())
}
