package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"JMLogPump/internal/batch"
	"JMLogPump/internal/clickhouseclient"
	"JMLogPump/internal/config"
	"JMLogPump/internal/logger"
	"JMLogPump/internal/metrics"
	"JMLogPump/internal/models"
	"JMLogPump/internal/pipeline"
	"JMLogPump/internal/report"
	"JMLogPump/internal/storage"
	"JMLogPump/internal/store"
	"JMLogPump/internal/watcher"
)

const usage = `usage: jmlogpump <command> [flags]

commands:
  report   посчитать ряды по файлу лога и записать YAML-отчёт
  export   сохранить лог (CSV или XML) в CSV
  pump     следить за каталогами и отправлять логи в ClickHouse
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "report":
		err = runReport(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "pump":
		err = runPump(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "jmlogpump:", err)
		os.Exit(1)
	}
}

// loadConfig читает конфиг, если путь задан, иначе берёт значения по умолчанию
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.LoadConfig(path)
}

func runReport(args []string) error {
	fs := pflag.NewFlagSet("report", pflag.ContinueOnError)
	file := fs.StringP("file", "f", "", "файл лога JMeter (.jtl, CSV или XML)")
	cfgPath := fs.StringP("config", "c", "", "файл конфигурации YAML")
	window := fs.IntP("window", "w", 0, "ширина окна агрегации, сек")
	modes := fs.StringSliceP("modes", "m", nil, "метрики: art, lat, rpt, bpt, err, errc, vusers, *_total")
	trend := fs.Bool("trend", false, "добавить скользящее среднее")
	output := fs.StringP("output", "o", "", "файл отчёта (по умолчанию stdout)")
	mb := fs.Bool("mb", false, "пропускная способность в МБ/с")
	seconds := fs.Bool("seconds", false, "время отклика в секундах")
	start := fs.Int("start", 0, "начало окна просмотра, сек от старта")
	end := fs.Int("end", -1, "конец окна просмотра, сек от старта")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("report: --file is required")
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if fs.Changed("window") {
		cfg.WindowSeconds = *window
	}
	if fs.Changed("modes") {
		cfg.Modes = *modes
	}
	if fs.Changed("trend") {
		cfg.Trend = *trend
	}
	if fs.Changed("mb") {
		cfg.Units.MegabytesPerSecond = *mb
	}
	if fs.Changed("seconds") {
		cfg.Units.Seconds = *seconds
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rootLogger, err := logger.InitZap(&cfg.Logging)
	if err != nil {
		return err
	}
	lg := rootLogger.Named("report")
	defer lg.Sync()

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}

	st, err := store.Load(*file)
	if err != nil {
		lg.Error("Ошибка чтения лога", zap.String("file", *file), zap.Error(err))
		return err
	}
	if fs.Changed("start") || fs.Changed("end") {
		viewEnd := *end
		if viewEnd < 0 {
			viewEnd = st.EndTime()
		}
		st.SetView(*start, viewEnd)
	}
	lg.Info("Лог загружен",
		zap.String("file", *file),
		zap.Stringer("format", st.Format()),
		zap.Int("records", st.Len()),
		zap.Int("duration_sec", st.EndTime()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := pipeline.AnalyzeStore(ctx, st, *file, opts)
	if err != nil {
		return err
	}
	rep := report.FromAnalysis(a)
	if *output == "" {
		return rep.Write(os.Stdout)
	}
	if err := rep.WriteFile(*output); err != nil {
		return err
	}
	lg.Info("Отчёт записан", zap.String("output", *output), zap.Int("series", len(rep.Series)))
	return nil
}

func runExport(args []string) error {
	fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
	file := fs.StringP("file", "f", "", "файл лога JMeter (.jtl, CSV или XML)")
	output := fs.StringP("output", "o", "", "CSV-файл для записи")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" || *output == "" {
		return fmt.Errorf("export: --file and --output are required")
	}

	cfg, err := config.Default()
	if err != nil {
		return err
	}
	rootLogger, err := logger.InitZap(&cfg.Logging)
	if err != nil {
		return err
	}
	lg := rootLogger.Named("export")
	defer lg.Sync()

	st, err := store.Load(*file)
	if err != nil {
		return err
	}
	if err := st.ExportFile(*output); err != nil {
		return err
	}
	lg.Info("Лог сохранён в CSV", zap.String("file", *file), zap.String("output", *output), zap.Int("records", st.Len()))
	return nil
}

func runPump(args []string) error {
	fs := pflag.NewFlagSet("pump", pflag.ContinueOnError)
	cfgPath := fs.StringP("config", "c", "config.yaml", "файл конфигурации YAML")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", *cfgPath, err)
	}
	if err := cfg.ValidatePump(); err != nil {
		return fmt.Errorf("validate %s: %w", *cfgPath, err)
	}

	rootLogger, err := logger.InitZap(&cfg.Logging)
	if err != nil {
		return err
	}
	lg := rootLogger.Named("main")
	defer lg.Sync()
	lg.Info("Сервис JMLogPump стартует…", zap.String("config", *cfgPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	chClient, err := clickhouseclient.New(cfg.ClickHouse, lg.Named("clickhouse"))
	if err != nil {
		lg.Fatal("Ошибка подключения к ClickHouse", zap.Error(err))
	}
	defer chClient.Close()

	schemaCtx, schemaCancel := context.WithTimeout(ctx, 30*time.Second)
	err = chClient.EnsureSchema(schemaCtx)
	schemaCancel()
	if err != nil {
		lg.Fatal("Ошибка создания таблиц ClickHouse", zap.Error(err))
	}

	processed, err := storage.Open(cfg)
	if err != nil {
		lg.Fatal("Ошибка открытия хранилища обработанных файлов", zap.Error(err))
	}

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}

	recordsCh := make(chan models.RecordRow, cfg.BatchSize*2)
	seriesCh := make(chan models.SeriesRow, cfg.BatchSize*2)
	proc := pipeline.NewProcessor(opts, recordsCh, seriesCh, m, lg.Named("pipeline"))

	batcherLogger := lg.Named("batcher")
	recordsBatcher := batch.NewBatcher("records", cfg.BatchSize, cfg.BatchPeriod(), batcherLogger, chClient.InsertRecords, m)
	seriesBatcher := batch.NewBatcher("series", cfg.BatchSize, cfg.BatchPeriod(), batcherLogger, chClient.InsertSeries, m)

	w := watcher.New(watcher.Config{
		Dirs:           cfg.LogDirectories,
		Patterns:       cfg.FilePatterns,
		RescanInterval: cfg.RescanPeriod(),
		SettleInterval: cfg.SettlePeriod(),
		Logger:         lg.Named("watcher"),
		Store:          processed,
		Handle:         proc.Process,
	})

	// батчеры живут до закрытия каналов, чтобы дописать строки последнего файла
	var sinks sync.WaitGroup
	sinks.Add(2)
	go func() { defer sinks.Done(); recordsBatcher.Run(context.Background(), recordsCh) }()
	go func() { defer sinks.Done(); seriesBatcher.Run(context.Background(), seriesCh) }()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.Start(ctx); err != nil {
			lg.Error("Watcher завершился с ошибкой", zap.Error(err))
			cancel()
		}
	}()
	if cfg.Metrics.Address != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.Metrics.Address, reg, lg.Named("metrics")); err != nil {
				lg.Error("Ошибка сервера метрик", zap.Error(err))
			}
		}()
	}

	select {
	case <-stop:
		lg.Info("Получен сигнал остановки, начинаем завершение работы")
	case <-ctx.Done():
	}
	cancel()
	wg.Wait()
	close(recordsCh)
	close(seriesCh)
	sinks.Wait()
	lg.Info("Сервис завершил работу")
	return nil
}
