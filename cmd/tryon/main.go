package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/tryon/internal/asset"
	"github.com/ivlev/tryon/internal/config"
	"github.com/ivlev/tryon/internal/effects"
	"github.com/ivlev/tryon/internal/engine"
	"github.com/ivlev/tryon/internal/export"
	"github.com/ivlev/tryon/internal/inference"
	"github.com/ivlev/tryon/internal/measure"
	"github.com/ivlev/tryon/internal/placement"
	"github.com/ivlev/tryon/internal/source"
	"github.com/ivlev/tryon/internal/system"
	"github.com/ivlev/tryon/internal/video"
)

func main() {
	// Создаем нужные директории, если их нет
	for _, d := range []string{"input", "output"} {
		os.MkdirAll(d, 0755)
	}

	configPtr := flag.String("config", "", "Путь к YAML-конфигурации")
	inputPtr := flag.String("input", "", "Фото, PDF-лукбук или папка кадров (по умолчанию: самый свежий файл в input/)")
	assetPtr := flag.String("asset", "", "Изображение вещи (PNG/JPEG/WebP)")
	categoryPtr := flag.String("category", "", "Категория: headwear, eyewear, top, outerwear, bottom, footwear, accessory")
	heightPtr := flag.Float64("height", 0, "Рост пользователя в см (0 - без перевода в сантиметры)")
	filtersPtr := flag.String("filters", "", "Фильтры через запятую, интенсивность через двоеточие: sepia:0.5,blur")
	outputPtr := flag.String("output", "", "Путь к снимку (если пусто, генерируется автоматически в output/)")
	formatPtr := flag.String("format", "", "Формат снимка: png, jpeg, webp")
	streamPtr := flag.Bool("stream", false, "Непрерывный режим по папке кадров")
	framesPtr := flag.Int("frames", 0, "Сколько кадров отрисовать в непрерывном режиме (0 - до Ctrl+C)")
	recordPtr := flag.String("record", "", "Записать непрерывный режим в видео (mp4)")
	signalsPtr := flag.String("signals", "", "Файл для сигналов позы (msgpack)")
	statsPtr := flag.Bool("stats", false, "Показать статистику сессии")
	fixturePtr := flag.String("record-fixture", "", "Сохранить найденные позы в YAML для детектора fixture")

	flag.Parse()

	cfg := config.Default()
	if *configPtr != "" {
		loaded, err := config.Load(*configPtr)
		if err != nil {
			log.Fatalf("[-] Ошибка конфигурации: %v", err)
		}
		cfg = loaded
	}
	if err := applyFlags(&cfg, *assetPtr, *categoryPtr, *heightPtr, *filtersPtr, *formatPtr, *recordPtr); err != nil {
		log.Fatalf("[-] Ошибка параметров: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}

	logger, err := system.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Console)
	if err != nil {
		log.Fatalf("[-] Ошибка логгера: %v", err)
	}

	inputPath := *inputPtr
	if inputPath == "" {
		latest, err := system.FindLatestInput("input")
		if err != nil {
			log.Fatalf("[-] Ошибка: %v. Положите фото или PDF в input/", err)
		}
		inputPath = latest
		fmt.Printf("[*] Выбран файл: %s\n", inputPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger, runArgs{
		input:   inputPath,
		output:  *outputPtr,
		stream:  *streamPtr,
		frames:  *framesPtr,
		signals: *signalsPtr,
		fixture: *fixturePtr,
		stats:   *statsPtr,
	}); err != nil {
		log.Fatalf("[-] Ошибка сессии: %v", err)
	}
}

func applyFlags(cfg *config.Config, assetPath, category string, height float64, filters, format, record string) error {
	if assetPath != "" {
		cfg.Session.Asset = assetPath
	}
	if category != "" {
		cfg.Session.Category = placement.Category(category)
	}
	if height > 0 {
		cfg.Session.HeightCm = float32(height)
	}
	if filters != "" {
		specs, err := parseFilters(filters)
		if err != nil {
			return err
		}
		cfg.Session.Filters = specs
	}
	if format != "" {
		cfg.Output.Format = format
	}
	if record != "" {
		cfg.Output.Record = record
	}
	return nil
}

// parseFilters reads "id[:intensity]" items separated by commas.
func parseFilters(s string) ([]effects.Spec, error) {
	var specs []effects.Spec
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		spec := effects.Spec{ID: item, Intensity: 1}
		if id, value, ok := strings.Cut(item, ":"); ok {
			k, err := strconv.ParseFloat(value, 32)
			if err != nil {
				return nil, fmt.Errorf("фильтр %s: некорректная интенсивность %q", id, value)
			}
			spec.ID, spec.Intensity = id, float32(k)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

type runArgs struct {
	input   string
	output  string
	stream  bool
	frames  int
	signals string
	fixture string
	stats   bool
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger, args runArgs) error {
	stack, err := effects.Resolve(cfg.Session.Filters)
	if err != nil {
		return err
	}

	detector, err := inference.NewDetector(cfg.Detector.Backend, cfg.Detector.Options, logger)
	if err != nil {
		return err
	}
	if args.fixture != "" {
		recorder := inference.NewRecordingDetector(detector)
		defer func() {
			if err := inference.WriteFixture(recorder.Fixture(), args.fixture); err != nil {
				fmt.Printf("[!] Не удалось сохранить позы: %v\n", err)
				return
			}
			fmt.Printf("[+++] Позы сохранены: %s\n", args.fixture)
		}()
		detector = recorder
	}
	if err := detector.Init(cfg.Detector.Config); err != nil {
		return fmt.Errorf("детектор позы: %w", err)
	}
	defer detector.Dispose()

	var segmenter inference.Segmenter
	if stack.NeedsMask() {
		segmenter, err = inference.NewSegmenter(cfg.Segmenter.Backend, cfg.Segmenter.Options)
		if err != nil {
			return err
		}
		if err := segmenter.Init(cfg.Detector.Config); err != nil {
			return fmt.Errorf("сегментация: %w", err)
		}
		defer segmenter.Dispose()
	}

	opts := engine.DefaultOptions()
	opts.Width, opts.Height = cfg.Session.Width, cfg.Session.Height
	opts.FPS = cfg.Session.FPS
	opts.Category = cfg.Session.Category
	opts.HeightCm = cfg.Session.HeightCm
	opts.Adjustments = cfg.Session.Adjustments
	opts.Filters = cfg.Session.Filters
	opts.OverlayWait = cfg.Session.OverlayWait
	opts.SignalBuffer = cfg.Session.SignalBuffer
	opts.Detector = cfg.Detector.Config

	sess, err := engine.New(opts, detector, segmenter, logger)
	if err != nil {
		return err
	}
	signalsDone := drainSignals(sess, args.signals, logger)
	defer func() {
		sess.Close()
		<-signalsDone
	}()

	if cfg.Session.Asset != "" {
		a, err := asset.ReadFile(cfg.Session.Asset, cfg.Session.Category, cfg.Session.Variant)
		if err != nil {
			return err
		}
		if err := sess.SetAsset(ctx, a); err != nil {
			return err
		}
	}
	if cfg.Session.Background != "" {
		img, err := loadBackground(ctx, cfg.Session.Background)
		if err != nil {
			return err
		}
		sess.SetBackground(img)
	}

	src, err := source.Open(args.input, cfg.Session.DPI)
	if err != nil {
		return fmt.Errorf("ошибка инициализации источника: %w", err)
	}

	fmt.Printf("[*] Сессия %s | Категория: %s | Разрешение: %dx%d\n", sess.ID, opts.Category, opts.Width, opts.Height)

	start := time.Now()
	if args.stream {
		err = runStream(ctx, cfg, logger, sess, src, args.frames)
	} else {
		err = runStill(ctx, cfg, sess, src, args.input, args.output)
	}
	if err != nil {
		return err
	}

	if args.stats {
		printStats(sess.Stats(), time.Since(start))
	}
	return nil
}

func loadBackground(ctx context.Context, path string) (image.Image, error) {
	bg, err := source.NewImageSource(path)
	if err != nil {
		return nil, fmt.Errorf("фон: %w", err)
	}
	defer bg.Close()
	img, err := bg.Frame(ctx)
	if err != nil {
		return nil, fmt.Errorf("фон: %w", err)
	}
	return img, nil
}

func runStill(ctx context.Context, cfg config.Config, sess *engine.Session, src source.Source, inputPath, outputPath string) error {
	defer src.Close()

	res, err := sess.RunStill(ctx, src)
	if err != nil {
		return err
	}
	if res.Err != nil {
		fmt.Printf("[!] Поза недоступна: %v\n", res.Err)
	}
	for _, skipped := range res.Report.Skipped {
		fmt.Printf("[!] Пропущен этап %s\n", skipped)
	}

	printResult(res, cfg)

	exportOpts, err := cfg.ExportOptions()
	if err != nil {
		return err
	}
	data, err := export.Capture(res.Frame, exportOpts)
	if err != nil {
		return err
	}

	if outputPath == "" {
		outputPath = cfg.Output.Path
	}
	if outputPath == "" {
		outputPath = autoOutputName(inputPath, string(exportOpts.Format))
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return err
	}
	fmt.Printf("[+++] Успех! Результат: %s\n", outputPath)
	return nil
}

func runStream(ctx context.Context, cfg config.Config, logger zerolog.Logger, sess *engine.Session, src source.Source, frames int) error {
	var sink engine.Sink
	if cfg.Output.Record != "" {
		encoder := cfg.Output.Encoder
		if encoder == "" {
			encoder = system.GetBestH264Encoder()
			if encoder != "libx264" {
				fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", encoder)
			}
		}
		rec, err := video.NewRecorder(ctx, video.Options{
			Path:    cfg.Output.Record,
			Width:   cfg.Session.Width,
			Height:  cfg.Session.Height,
			FPS:     cfg.Session.FPS,
			Encoder: encoder,
			Quality: system.DefaultQuality(encoder),
		}, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				fmt.Printf("[!] Ошибка записи видео: %v\n", err)
				return
			}
			fmt.Printf("[+++] Успех! Видео: %s (%d кадров)\n", cfg.Output.Record, rec.Frames())
		}()
		sink = rec
	}

	fmt.Println("[*] Непрерывный режим, Ctrl+C для остановки...")
	return sess.Run(ctx, src, sink, frames)
}

func drainSignals(sess *engine.Session, path string, logger zerolog.Logger) <-chan struct{} {
	done := make(chan struct{})
	var w io.WriteCloser
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("cannot write signals")
		} else {
			w = f
		}
	}
	go func() {
		defer close(done)
		var sw *engine.SignalWriter
		if w != nil {
			defer w.Close()
			sw = engine.NewSignalWriter(w)
		}
		for sig := range sess.Signals() {
			if sw == nil {
				continue
			}
			if err := sw.Write(sig); err != nil {
				logger.Warn().Err(err).Msg("signal write failed")
				sw = nil
			}
		}
	}()
	return done
}

func printResult(res engine.Result, cfg config.Config) {
	if !res.PoseDetected {
		fmt.Println("[!] Человек в кадре не найден")
		if cfg.Session.HeightCm > 0 {
			m := measure.DefaultCalibration.Proportional(cfg.Session.HeightCm)
			printSizes("[*] Ожидаемые размеры по росту", measure.DefaultCalibration.Sizes(m))
		}
		return
	}
	if rec := res.Recommendation; rec != nil {
		rotation := "нет"
		if rec.HasRotation {
			rotation = fmt.Sprintf("%.1f°", rec.Rotation)
		}
		fmt.Printf("[*] Размещение: x=%.1f%% y=%.1f%% масштаб=%.0f%% поворот=%s\n", rec.X, rec.Y, rec.Scale, rotation)
	} else {
		fmt.Println("[!] Недостаточно ключевых точек для размещения")
	}
	if m := res.Measurements; m != nil && m.Scaled() {
		shoulder, _ := m.Cm(m.ShoulderWidth)
		height, _ := m.Cm(m.TotalHeight)
		fmt.Printf("[*] Плечи: %.1f см | Рост: %.1f см\n", shoulder, height)
	}
	printSizes("[*] Размеры", res.Sizes)
}

func printSizes(title string, sizes map[measure.GarmentClass]string) {
	if len(sizes) == 0 {
		return
	}
	classes := make([]string, 0, len(sizes))
	for c := range sizes {
		classes = append(classes, string(c))
	}
	sort.Strings(classes)
	parts := make([]string, 0, len(classes))
	for _, c := range classes {
		parts = append(parts, fmt.Sprintf("%s=%s", c, sizes[measure.GarmentClass(c)]))
	}
	fmt.Printf("%s: %s\n", title, strings.Join(parts, " "))
}

func printStats(st engine.Stats, elapsed time.Duration) {
	fps := 0.0
	if elapsed > 0 {
		fps = float64(st.Rendered) / elapsed.Seconds()
	}
	fmt.Printf(
		"--- [SESSION REPORT] ---\n"+
			"Total Time: %.2fs\n"+
			"Ticks: %d | Rendered: %d | Effective FPS: %.2f\n"+
			"Detections: %d | Dropped: %d | Stale: %d\n"+
			"Stage failures: %d | Unavailable: %d | Signals dropped: %d\n"+
			"CPU: %.1f%% | RSS: %.1f MB\n"+
			"------------------------\n",
		elapsed.Seconds(),
		st.Ticks, st.Rendered, fps,
		st.Detections, st.Dropped, st.Stale,
		st.StageFailures, st.Unavailable, st.SignalsDropped,
		st.Usage.CPUPercent, float64(st.Usage.RSSBytes)/(1<<20),
	)
}

func autoOutputName(inputPath, ext string) string {
	baseName := filepath.Base(inputPath)
	nameOnly := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	cleanName := strings.ReplaceAll(nameOnly, " ", "_")
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join("output", fmt.Sprintf("%s_%s.%s", cleanName, timestamp, ext))
}
