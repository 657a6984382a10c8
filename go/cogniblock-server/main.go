package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/cache"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/config"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/model"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/pipeline"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/server"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/store"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/tags"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/task"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/workflow"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config is the top-level configuration object of the server.
var Config = new(config.Config)

type cmdServe struct{}

func (cmdServe) Execute(_ []string) error {
	config.InitLog(Config.Log)

	log.WithField("config", Config).Info("cogniblock-server configuration")

	if err := Config.Validate(); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}

	var db, err = store.OpenSQLite(Config.Service.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening content database: %w", err)
	}
	defer db.Close()

	var client = model.NewHTTPClient(model.Config{
		EndpointURL: Config.Model.EndpointURL,
		APIKey:      Config.Model.APIKey,
		Models: map[model.Op]string{
			model.OpOCR:       Config.Model.OCRModel,
			model.OpCorrect:   Config.Model.CorrectionModel,
			model.OpSummarize: Config.Model.SummaryModel,
			model.OpTagGen:    Config.Model.TagModel,
		},
		MaxRetries: Config.Model.MaxRetries,
		RetryBase:  Config.RetryBase(),
	}, nil)

	// One cache serves both pipelines; keys carry the task kind.
	var resultCache = cache.New(Config.Cache.MaxEntries, Config.CacheTTL())

	var registry = task.NewRegistry(Config.RetentionTTL())
	var runner = &task.Runner{
		Gate:    task.NewGate(Config.Tasks.MaxConcurrent, Config.QueueWaitTimeout()),
		Timeout: Config.TaskTimeout(),
	}

	var smartNote = &pipeline.SmartNote{
		Client: client,
		Store:  db,
		Tags: &tags.Generator{
			Client:        client,
			Store:         db,
			MaxPerContent: Config.Tags.MaxPerContent,
			MaxExisting:   Config.Tags.MaxExisting,
		},
		Cache:            resultCache,
		MaxContentLength: Config.Notes.MaxContentLength,
		MaxImageBytes:    Config.Notes.MaxImageBytes,
	}
	var multiSummary = &workflow.MultiSummary{
		Client:              client,
		Cache:               resultCache,
		MinNotesThreshold:   Config.Notes.MinThreshold,
		ConfidenceThreshold: Config.Notes.ConfidenceThreshold,
		FanoutLimit:         Config.Notes.FanoutLimit,
		MaxNotes:            Config.Notes.MaxNotes,
		MaxContentLength:    Config.Notes.MaxContentLength,
	}

	var srv = &server.Server{
		Registry:      registry,
		Runner:        runner,
		Store:         db,
		SmartNote:     smartNote.Process,
		MultiSummary:  multiSummary.Process,
		MaxImageBytes: Config.Notes.MaxImageBytes,
	}

	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	go registry.ServeSweeper(ctx, Config.SweepInterval())

	var httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", Config.Service.Port),
		Handler: srv.Routes(),
	}

	// Install signal handler for graceful shutdown.
	var signalCh = make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		var sig = <-signalCh
		log.WithField("signal", sig).Info("caught signal")

		var shutdownCtx, cancelShutdown = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithField("err", err).Warn("shutdown did not complete cleanly")
		}
	}()

	log.WithField("port", Config.Service.Port).Info("starting cogniblock-server")

	if err = httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}

	log.Info("goodbye")
	return nil
}

func main() {
	// Local development reads configuration from a .env file.
	_ = godotenv.Load()

	var parser = flags.NewParser(Config, flags.Default)

	_, _ = parser.AddCommand("serve", "Serve the CogniBlock API", `
Serve the CogniBlock note-processing API with the provided configuration,
until signaled to exit (via SIGTERM).
`, &cmdServe{})

	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
}
