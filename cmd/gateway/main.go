package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hubenschmidt/dubstream-gateway/internal/align"
	"github.com/hubenschmidt/dubstream-gateway/internal/audio"
	"github.com/hubenschmidt/dubstream-gateway/internal/config"
	"github.com/hubenschmidt/dubstream-gateway/internal/env"
	"github.com/hubenschmidt/dubstream-gateway/internal/fetch"
	"github.com/hubenschmidt/dubstream-gateway/internal/orchestrator"
	"github.com/hubenschmidt/dubstream-gateway/internal/procx"
	"github.com/hubenschmidt/dubstream-gateway/internal/store"
	"github.com/hubenschmidt/dubstream-gateway/internal/trace"
	"github.com/hubenschmidt/dubstream-gateway/internal/tts"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogFormat)

	ctx := context.Background()

	gateway, err := store.Open(ctx, cfg.PostgresDSN, cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket)
	if err != nil {
		slog.Error("store open failed", "error", err)
		os.Exit(1)
	}
	defer gateway.Close()

	var traceStore *trace.Store
	if cfg.PostgresDSN != "" {
		traceStore, err = trace.Open(cfg.PostgresDSN)
		if err != nil {
			slog.Warn("trace store open failed, proceeding without tracing", "error", err)
			traceStore = nil
		}
	}
	if traceStore != nil {
		defer traceStore.Close()
	}

	runner := procx.NewRunner(cfg.FFmpegTimeout)

	synth := tts.NewHTTPSynthesizer(cfg.TTSURL, cfg.TTSAPIKey, cfg.TTSTimeout)
	producer := tts.New(synth, cfg.TTSBatchSize, cfg.TTSQueueSize, cfg.SaveTTSAudio)

	var separator fetch.Separator
	if cfg.SeparatorURL != "" {
		separator = fetch.NewHTTPSeparator(cfg.SeparatorURL, cfg.SeparatorTimeout)
	}
	slicer := audio.NewSlicer(audio.SlicerConfig{
		GoalMs:              int64(cfg.ClipGoalDurationMs),
		MinMs:               int64(cfg.ClipMinDurationMs),
		PaddingMs:           int64(cfg.ClipPaddingMs),
		AllowCrossNonSpeech: cfg.ClipAllowCrossNonSpeech,
		SampleRate:          cfg.TargetSampleRate,
	})
	fetcher := fetch.New(gateway, separator, slicer, runner, cfg.TargetSampleRate, separator != nil)

	var backends []align.BackendConfig
	for _, b := range cfg.Simplifiers {
		backends = append(backends, align.BackendConfig{Name: b.Name, URL: b.URL, APIKey: b.APIKey, Model: b.Model})
	}
	simplifierRouter := align.NewSimplifierRouter(backends, cfg.TranslationModel)
	simplifier, simplifierErr := simplifierRouter.Route(cfg.TranslationModel)
	if simplifierErr != nil {
		slog.Warn("no simplifier backend configured, over-speed sentences will not be rewritten", "error", simplifierErr)
	}
	resynth := align.NewResynthesizer(synth)
	aligner := align.New(simplifier, resynth)

	hub := newEventHub()

	orch := orchestrator.New(gateway, fetcher, producer, aligner, runner, orchestrator.Config{
		ScratchRoot:         env.Str("SCRATCH_ROOT", "/tmp/dubstream"),
		SampleRate:          cfg.TargetSampleRate,
		OverlapSamples:      cfg.AudioOverlapSamples,
		SilenceFadeMs:       cfg.SilenceFadeMs,
		NormalizationThresh: cfg.NormalizationThresh,
		VocalsVolume:        cfg.VocalsVolume,
		BackgroundVolume:    cfg.BackgroundVolume,
		TTSBatchSize:        cfg.TTSBatchSize,
		AlignedQueueSize:    cfg.AlignedQueueSize,
		SaveTTSAudio:        cfg.SaveTTSAudio,
		MaxBufferDuration:   cfg.MaxBufferDuration,
		CleanupInterval:     cfg.CleanupInterval,
		BurnSubtitles:       cfg.BurnSubtitles,
		SubtitleLang:        cfg.SubtitleLang,
		FFmpegTimeout:       cfg.FFmpegTimeout,
		EnableSeparation:    separator != nil,
		KeepScratch:         !cfg.CleanupLocalHLSFiles,
		UploadConcurrency:   cfg.UploadConcurrency,
	})
	orch.SetEventSink(hub)

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		store:      gateway,
		orch:       orch,
		traceStore: traceStore,
		hub:        hub,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	go awaitShutdown(srv)

	slog.Info("dubstream gateway starting", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("dubstream gateway stopped")
}

func setupLogging(format string) {
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func awaitShutdown(srv *http.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

