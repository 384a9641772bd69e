package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/pdfsearch/internal/api"
	"github.com/dgallion1/pdfsearch/internal/config"
	"github.com/dgallion1/pdfsearch/internal/ocr"
	"github.com/dgallion1/pdfsearch/internal/parser"
	"github.com/dgallion1/pdfsearch/internal/pipeline"
	"github.com/dgallion1/pdfsearch/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize recognition.
	recognizer, err := ocr.New(ctx, ocr.ProviderConfig{
		Provider: cfg.OCRProvider,
		DocumentAI: ocr.DocumentAIConfig{
			ProjectID:       cfg.DocumentAI.Project,
			Location:        cfg.DocumentAI.Location,
			ProcessorID:     cfg.DocumentAI.Processor,
			CredentialsFile: cfg.DocumentAI.CredentialsFile,
		},
		Vision: ocr.VisionConfig{
			Model:   cfg.Vision.Model,
			BaseURL: cfg.Vision.BaseURL,
			APIKey:  cfg.Vision.APIKey,
			Prompt:  cfg.Vision.Prompt,
		},
	})
	switch {
	case errors.Is(err, ocr.ErrOCRNotEnabled):
		// Text-layer pages still work; scanned pages fail their batch.
		log.Warn("ocr unavailable", "provider", cfg.OCRProvider, "error", err)
		recognizer = ocr.Unavailable(err)
	case err != nil:
		log.Error("init ocr provider", "provider", cfg.OCRProvider, "error", err)
		os.Exit(1)
	}
	ocrStats := ocr.NewStats(time.Hour)

	fallback := ocr.NewFallback(&ocr.Timed{Recognizer: recognizer, Stats: ocrStats})
	fallback.MinTextLength = cfg.OCRMinTextLength
	fallback.RenderScale = cfg.OCRRenderScale
	fallback.Language = cfg.OCRLanguage
	fallback.Reconstructor.DefaultHeight = cfg.DefaultFragmentHeight

	// Initialize pipeline.
	pdfs := parser.NewPDFParser(parser.NewRasterizer(cfg.PdftoppmPath, cfg.OCRMaxRasterDim, log))
	docs := store.New()
	orch := pipeline.NewOrchestrator(cfg, pipeline.NewProcessor(pdfs, fallback, log), docs, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, docs, ocrStats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()

		if c, ok := recognizer.(io.Closer); ok {
			c.Close()
		}
	}()

	log.Info("starting pdfsearch", "port", cfg.Port, "ocr_provider", cfg.OCRProvider)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
