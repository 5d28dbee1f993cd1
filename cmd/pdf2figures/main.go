package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ivlev/pdf2figures/internal/analyzer"
	"github.com/ivlev/pdf2figures/internal/caption"
	"github.com/ivlev/pdf2figures/internal/config"
	"github.com/ivlev/pdf2figures/internal/engine"
	"github.com/ivlev/pdf2figures/internal/logger"
	"github.com/ivlev/pdf2figures/internal/source"
	"github.com/ivlev/pdf2figures/internal/system"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pdf2figures [pdf-file]",
	Short: "Извлечение изображений и подписей к ним из PDF",
	Long: `Находит изображения на каждой странице PDF, подбирает к ним подписи
и сохраняет их в PNG вместе со списком image_list.txt.

Стратегии поиска подписей:
  position - подпись вида "Figure N:" в блоке текста под изображением (по умолчанию)
  keyword  - первая строка страницы с ключевым словом, сохраняются все изображения

Если PDF не указан, берётся самый свежий файл из input/pdf/.`,
	Example: `  pdf2figures paper.pdf
  pdf2figures paper.pdf -o figures --dpi 150
  pdf2figures --strategy keyword --manifest-yaml report.pdf`,
	Args:    cobra.MaximumNArgs(1),
	Version: version,
	RunE:    run,
}

func init() {
	f := rootCmd.Flags()
	f.String("config", "", "YAML-файл конфигурации")
	f.StringP("output", "o", "", "Папка для изображений (по умолчанию: extracted_images)")
	f.String("manifest", "", "Имя файла со списком изображений")
	f.Bool("manifest-yaml", false, "Дополнительно сохранить список в YAML")
	f.StringP("strategy", "s", "", "Стратегия подписей: position, keyword")
	f.String("blocks", "", "Разметка страниц: auto, stext (mutool), html (go-fitz)")
	f.String("mutool", "", "Путь к mutool")
	f.Float64("distance", 0, "Макс. расстояние от изображения до подписи (пт)")
	f.Int("dpi", 0, "DPI растеризации страниц")
	f.Int("max-dimension", 0, "Макс. размер стороны изображения в пикселях (0 - без ограничения)")
	f.Int("progress", 0, "Печатать прогресс каждые N страниц")
	f.Bool("stats", false, "Показать потребление памяти")
	f.String("log-level", "", "Уровень логов: debug, info, warn, error")
	f.String("log-format", "", "Формат логов: console, json")
	f.String("log-output", "", "Куда писать логи: stderr, stdout или путь к файлу")
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[!] Не удалось прочитать .env: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[-] Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := logger.Setup(logger.LogConfig{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		TimeFormat: logger.DefaultConfig().TimeFormat,
		Output:     cfg.LogOutput,
	}); err != nil {
		return fmt.Errorf("логгер: %w", err)
	}
	log := logger.WithComponent("pdf2figures")

	if cfg.InputPath == "" {
		latest, err := system.FindLatestPDF("input/pdf")
		if err != nil {
			return fmt.Errorf("%w. Положите PDF в input/pdf/ или укажите путь", err)
		}
		cfg.InputPath = latest
		fmt.Printf("[*] Выбран файл: %s\n", cfg.InputPath)
	}

	src, err := source.Open(cfg.InputPath)
	if err != nil {
		var openErr *source.DocumentOpenError
		if errors.As(err, &openErr) {
			log.Error().Err(openErr.Err).Str("path", openErr.Path).Msg("cannot open document")
		}
		return err
	}
	defer src.Close()

	ext, err := analyzer.NewExtractor(cfg.BlockSource, cfg.MutoolPath)
	if err != nil {
		return err
	}
	strategy, err := caption.NewStrategy(cfg.Strategy, caption.Options{MaxDistance: cfg.CaptionDistance})
	if err != nil {
		return err
	}

	log.Debug().
		Str("input", cfg.InputPath).
		Str("strategy", strategy.Name()).
		Str("blocks", cfg.BlockSource).
		Int("dpi", cfg.DPI).
		Msg("starting extraction")

	project := engine.NewExtractionProject(cfg, src, ext, strategy, log)
	res, err := project.Run(context.Background())
	if err != nil {
		return fmt.Errorf("ошибка проекта: %w", err)
	}

	fmt.Printf("[+++] Успех! Сохранено изображений: %d, папка: %s\n", len(res.Records), cfg.OutputDir)
	return nil
}

// loadConfig: значения по умолчанию < YAML < переменные окружения < флаги
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.Default()
	cfg.BuildVersion = version

	f := cmd.Flags()
	if path, _ := f.GetString("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.InputPath = args[0]
	}
	if f.Changed("output") {
		cfg.OutputDir, _ = f.GetString("output")
	}
	if f.Changed("manifest") {
		cfg.ManifestName, _ = f.GetString("manifest")
	}
	if f.Changed("manifest-yaml") {
		cfg.ManifestYAML, _ = f.GetBool("manifest-yaml")
	}
	if f.Changed("strategy") {
		cfg.Strategy, _ = f.GetString("strategy")
	}
	if f.Changed("blocks") {
		cfg.BlockSource, _ = f.GetString("blocks")
	}
	if f.Changed("mutool") {
		cfg.MutoolPath, _ = f.GetString("mutool")
	}
	if f.Changed("distance") {
		cfg.CaptionDistance, _ = f.GetFloat64("distance")
	}
	if f.Changed("dpi") {
		cfg.DPI, _ = f.GetInt("dpi")
	}
	if f.Changed("max-dimension") {
		cfg.MaxDimension, _ = f.GetInt("max-dimension")
	}
	if f.Changed("progress") {
		cfg.ProgressInterval, _ = f.GetInt("progress")
	}
	if f.Changed("stats") {
		cfg.ShowStats, _ = f.GetBool("stats")
	}
	if f.Changed("log-level") {
		cfg.LogLevel, _ = f.GetString("log-level")
	}
	if f.Changed("log-format") {
		cfg.LogFormat, _ = f.GetString("log-format")
	}
	if f.Changed("log-output") {
		cfg.LogOutput, _ = f.GetString("log-output")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
