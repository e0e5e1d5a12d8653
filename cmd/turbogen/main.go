package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"turbogen/internal/comfy"
	"turbogen/internal/infra"
	"turbogen/internal/storage"
	"turbogen/internal/studio"
)

func main() {
	var (
		promptFlag   string
		outFlag      string
		baseFlag     string
		attemptsFlag int
		intervalFlag time.Duration
		verboseFlag  bool
	)

	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}

	flag.StringVar(&promptFlag, "prompt", "", "text to render (remaining arguments are used when empty)")
	flag.StringVar(&outFlag, "out", ".", "directory the image is saved into")
	flag.StringVar(&baseFlag, "base", cfg.ComfyBaseURL, "ComfyUI base URL")
	flag.IntVar(&attemptsFlag, "attempts", cfg.ComfyPollAttempts, "history polls before giving up")
	flag.DurationVar(&intervalFlag, "interval", cfg.ComfyPollInterval, "delay between history polls")
	flag.BoolVar(&verboseFlag, "v", false, "log every poll")
	flag.Parse()

	prompt := strings.TrimSpace(promptFlag)
	if prompt == "" {
		prompt = strings.TrimSpace(strings.Join(flag.Args(), " "))
	}
	if prompt == "" {
		exitWithError(errors.New("-prompt is required"))
	}

	appEnv := "cli"
	if verboseFlag {
		appEnv = "development"
	}
	logger := infra.NewLogger(appEnv).With().Str("cmd", "turbogen").Logger()

	store, err := storage.NewFileStore(outFlag)
	if err != nil {
		exitWithError(err)
	}

	// The CLI fetches images itself, so browser URLs point straight at the backend.
	client := comfy.NewClient(comfy.Options{
		BaseURL:        baseFlag,
		PublicBaseURL:  baseFlag,
		RequestTimeout: cfg.ComfyRequestTimeout,
		Logger:         &logger,
		PollInterval:   intervalFlag,
		PollAttempts:   attemptsFlag,
	})
	ctrl := studio.NewController(client, studio.Options{Logger: &logger})
	ctrl.SetPrompt(prompt)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	ctrl.Generate(ctx)
	state := ctrl.State()
	if state.Error != "" {
		exitWithError(errors.New(state.Error))
	}

	file := ctrl.Download(ctx)
	if file == nil {
		exitWithError(fmt.Errorf("could not download %s", state.ImageURL))
	}
	key, err := store.Write(ctx, file.Name, file.Data)
	if err != nil {
		exitWithError(err)
	}
	path, _ := store.Path(key)

	fmt.Printf("prompt_id=%s\n", state.JobID)
	fmt.Printf("image_url=%s\n", state.ImageURL)
	fmt.Printf("saved=%s (%d bytes, %s)\n", path, len(file.Data), time.Since(start).Round(time.Millisecond))
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
