// gonest — irregular 2D nesting engine
//
// Packs arbitrarily-shaped parts onto sheets using No-Fit Polygons, a
// genetic optimiser, and a greedy placement pass, with optional shared-cut
// line merging.
//
// Build:
//
//	go build -o gonest ./cmd/gonest
//
// Usage:
//
//	gonest --parts parts.json --sheets sheets.json --generations 20 --out result.json
//	gonest --csv parts.csv --sheets sheets.json --timeout 60 --pdf layout.pdf
//
// Exit codes: 0 completed, 1 cancelled or timed out, 2 invalid input,
// 3 internal fatal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/deepnest-next/gonest/internal/cache"
	"github.com/deepnest-next/gonest/internal/engine"
	"github.com/deepnest-next/gonest/internal/export"
	"github.com/deepnest-next/gonest/internal/importer"
	"github.com/deepnest-next/gonest/internal/model"
	"github.com/deepnest-next/gonest/internal/project"
	"github.com/deepnest-next/gonest/internal/report"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		partsPath   = flag.String("parts", "", "JSON part list")
		csvPath     = flag.String("csv", "", "CSV rectangular part list")
		xlsxPath    = flag.String("xlsx", "", "Excel rectangular part list")
		sheetsPath  = flag.String("sheets", "", "JSON sheet list")
		configPath  = flag.String("config", "", "JSON configuration (defaults when omitted)")
		outPath     = flag.String("out", "", "write the best result as JSON")
		pdfPath     = flag.String("pdf", "", "write a PDF layout")
		dxfPath     = flag.String("dxf", "", "write a DXF layout")
		labelsPath  = flag.String("labels", "", "write QR part labels PDF")
		reportPath  = flag.String("report", "", "write an HTML convergence report")
		seed        = flag.Int64("seed", 0, "random seed")
		cacheDir    = flag.String("cache-dir", "", "NFP cache directory (default $NFP_CACHE_DIR)")
		timeoutSec  = flag.Int("timeout", 0, "stop after this many seconds")
		generations = flag.Int("generations", 0, "stop after this many generations (0 = run until timeout)")
	)
	flag.Parse()

	parts, sheets, err := loadInputs(*partsPath, *csvPath, *xlsxPath, *sheetsPath)
	if err != nil {
		log.Printf("gonest: %v", err)
		return 2
	}

	cfg := model.DefaultConfig()
	if *configPath != "" {
		cfg, err = project.LoadConfig(*configPath)
		if err != nil {
			log.Printf("gonest: load config: %v", err)
			return 2
		}
	}
	if *cacheDir != "" {
		cfg.CacheDir = *cacheDir
	}

	nfpCache, store, closeCache, err := openCache(cfg)
	if err != nil {
		log.Printf("gonest: open cache: %v", err)
		return 3
	}
	defer closeCache()

	nester, err := engine.New(parts, sheets, cfg, nfpCache, *seed)
	if err != nil {
		return exitCode(err)
	}
	nester.MaxGenerations = *generations
	if store != nil {
		if err := store.Compact(nester.LiveSources()); err != nil {
			log.Printf("gonest: cache compaction: %v", err)
		}
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if *timeoutSec > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(*timeoutSec)*time.Second)
		defer cancel()
	} else if *generations == 0 {
		// Neither bound given: a single generation keeps the run finite.
		nester.MaxGenerations = 1
	}

	var history []report.Sample
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for ev := range nester.Progress() {
			fmt.Fprintf(os.Stderr, "\rgeneration %d: %3.0f%%", ev.Generation, ev.Progress*100)
		}
		fmt.Fprintln(os.Stderr)
	}()
	go func() {
		defer wg.Done()
		for r := range nester.Results() {
			history = append(history, report.Sample{Generation: r.Generation, Fitness: r.Fitness})
			log.Printf("improved: generation %d fitness %.3f, %d placed on %d sheet(s)",
				r.Generation, r.Fitness, r.PlacedCount(), len(r.Sheets))
		}
	}()

	best, runErr := nester.Run(ctx)
	wg.Wait()

	if _, ok := nester.Best(); !ok {
		if runErr != nil {
			log.Printf("gonest: %v", runErr)
			return exitCode(runErr)
		}
		log.Printf("gonest: no result produced")
		return 3
	}

	if err := writeOutputs(best, cfg, nester, history, *outPath, *pdfPath, *dxfPath, *labelsPath, *reportPath); err != nil {
		log.Printf("gonest: %v", err)
		return 3
	}

	log.Printf("done: fitness %.3f, utilisation %.1f%%, %d unplaced",
		best.Fitness, best.Utilisation*100, len(best.Unplaced))

	if runErr != nil {
		if model.KindOf(runErr) == model.KindCancelled {
			return 1
		}
		log.Printf("gonest: %v", runErr)
		return exitCode(runErr)
	}
	return 0
}

// loadInputs assembles the part and sheet lists from whichever sources
// were given. Tabular lists and JSON parts may be combined.
func loadInputs(partsPath, csvPath, xlsxPath, sheetsPath string) ([]model.Part, []model.Sheet, error) {
	var parts []model.Part
	if partsPath != "" {
		loaded, err := project.LoadParts(partsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load parts: %w", err)
		}
		parts = append(parts, loaded...)
	}
	for _, imp := range []struct {
		path string
		load func(string) importer.ImportResult
	}{
		{csvPath, importer.ImportCSV},
		{xlsxPath, importer.ImportExcel},
	} {
		if imp.path == "" {
			continue
		}
		result := imp.load(imp.path)
		for _, w := range result.Warnings {
			log.Printf("import: %s", w)
		}
		if len(result.Errors) > 0 {
			return nil, nil, fmt.Errorf("import %s: %s", imp.path, result.Errors[0])
		}
		parts = append(parts, result.Parts...)
	}
	if len(parts) == 0 {
		return nil, nil, errors.New("no parts given (use --parts, --csv or --xlsx)")
	}

	if sheetsPath == "" {
		return nil, nil, errors.New("no sheets given (use --sheets)")
	}
	sheets, err := project.LoadSheets(sheetsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load sheets: %w", err)
	}
	return parts, sheets, nil
}

// openCache resolves the cache directory and opens the durable store.
// Without a configured directory the cache is memory-only.
func openCache(cfg model.NestConfig) (*cache.Cache, *cache.Store, func(), error) {
	dir, err := cache.Resolve(cfg.CacheDir)
	if errors.Is(err, cache.ErrNoDir) {
		c := cache.New(nil)
		return c, nil, func() {}, nil
	}
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := cache.Open(dir)
	if err != nil {
		return nil, nil, nil, err
	}
	c := cache.New(store)
	return c, store, func() {
		if err := c.Close(); err != nil {
			log.Printf("gonest: close cache: %v", err)
		}
	}, nil
}

func writeOutputs(best model.NestResult, cfg model.NestConfig, nester *engine.Nester, history []report.Sample, outPath, pdfPath, dxfPath, labelsPath, reportPath string) error {
	if outPath != "" {
		if err := project.SaveResult(outPath, best); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	if pdfPath != "" {
		if err := export.ExportPDF(pdfPath, best, cfg, nester); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
	}
	if dxfPath != "" {
		if err := export.ExportDXF(dxfPath, best, nester); err != nil {
			return fmt.Errorf("write dxf: %w", err)
		}
	}
	if labelsPath != "" {
		if err := export.ExportLabels(labelsPath, best, nester); err != nil {
			return fmt.Errorf("write labels: %w", err)
		}
	}
	if reportPath != "" && len(history) > 0 {
		if err := report.WriteConvergence(reportPath, history); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return nil
}

func exitCode(err error) int {
	switch model.KindOf(err) {
	case model.KindCancelled:
		return 1
	case model.KindInvalidInput:
		log.Printf("gonest: %v", err)
		return 2
	default:
		log.Printf("gonest: %v", err)
		return 3
	}
}
