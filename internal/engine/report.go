package engine

import (
	"fmt"
	"time"

	"github.com/ivlev/pdf2figures/internal/system"
)

func (p *ExtractionProject) reportProgress(index, pageCount int, res *Result, elapsed time.Duration) {
	percent := float64(index+1) / float64(pageCount) * 100
	line := fmt.Sprintf("[*] Страница %d/%d (%.1f%%) - С подписями: %d/%d",
		index+1, pageCount, percent, res.ImagesCaptioned, res.ImagesFound)

	// Оценка оставшегося времени по уже обработанным страницам
	if index > 0 && elapsed > 0 {
		pagesPerSecond := float64(index) / elapsed.Seconds()
		remaining := float64(pageCount-index) / pagesPerSecond / 60
		line += fmt.Sprintf(" - Осталось: %.1f мин", remaining)
	}

	fmt.Fprintln(p.Out, line)
}

func (p *ExtractionProject) reportSummary(res *Result) {
	skippedLabel := "Без подписей (пропущено)"
	if p.Strategy.Permissive() {
		skippedLabel = "Без подписей"
	}

	pagesPerSecond := 0.0
	if res.Elapsed > 0 {
		pagesPerSecond = float64(res.Pages) / res.Elapsed.Seconds()
	}

	fmt.Fprintf(p.Out,
		"\n[+++] Обработка завершена!\n"+
			"Общее время: %.1f мин\n"+
			"Найдено изображений: %d\n"+
			"С подписями: %d\n"+
			"%s: %d\n"+
			"Сохранено: %d | Ошибок страниц: %d | Ошибок изображений: %d\n"+
			"Средняя скорость: %.1f стр/с\n",
		res.Elapsed.Minutes(),
		res.ImagesFound,
		res.ImagesCaptioned,
		skippedLabel, res.ImagesFound-res.ImagesCaptioned,
		len(res.Records), res.PagesFailed, res.ImagesFailed,
		pagesPerSecond,
	)

	if p.Config.ShowStats {
		if rss, err := system.MemoryUsage(); err == nil {
			fmt.Fprintf(p.Out, "Память (RSS): %s\n", system.FormatBytes(rss))
		} else {
			p.Log.Debug().Err(err).Msg("memory stats unavailable")
		}
	}

	fmt.Fprintf(p.Out, "\n[*] Подробный список: %s\n", res.ManifestPath)
}
