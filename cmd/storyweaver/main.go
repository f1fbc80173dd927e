package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/khuang/storyweaver/internal/auth"
	"github.com/khuang/storyweaver/internal/bundle"
	"github.com/khuang/storyweaver/internal/compile"
	"github.com/khuang/storyweaver/internal/gen"
	"github.com/khuang/storyweaver/internal/illustrate"
	"github.com/khuang/storyweaver/internal/logging"
	"github.com/khuang/storyweaver/internal/progress"
	"github.com/khuang/storyweaver/internal/storage"
	"github.com/khuang/storyweaver/internal/story"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Environment configuration for the optional AWS backends.
const (
	assetBucketEnv   = "STORY_ASSET_BUCKET"
	progressTableEnv = "STORY_PROGRESS_TABLE"
)

// CLI flags
var (
	portFlag      int
	modelFlag     string
	thresholdFlag int
	noImagesFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "storyweaver",
	Short: "Interactive children's story generation server",
	Long: `StoryWeaver runs the story generation backend: interactive choose-your-own
story sessions with Gemini, scene illustrations with Imagen, and background
story video compilation with Veo.

Set STORY_ASSET_BUCKET to enable illustration and video storage, and
STORY_PROGRESS_TABLE to enable reader progress tracking.

Examples:
  storyweaver
  storyweaver --port 9090
  storyweaver --model gemini-2.5-pro --threshold 8
  storyweaver --no-images`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", gen.DefaultModelName, "Gemini text model to use")
	rootCmd.Flags().IntVar(&thresholdFlag, "threshold", story.DefaultThreshold, "Scene count that triggers video compilation")
	rootCmd.Flags().BoolVar(&noImagesFlag, "no-images", false, "Disable scene illustration")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	if cmd.Flags().Changed("model") {
		os.Setenv("GEMINI_MODEL", modelFlag)
	}

	ctx := context.Background()

	apiKey, err := auth.GetAPIKey(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get API key")
	}
	client, err := gen.NewClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	if err := auth.ValidateAPIKey(ctx, client); err != nil {
		log.Fatal().Err(err).Msg("Invalid API key")
	}
	log.Info().Str("model", gen.GetModelName()).Msg("API key validated")

	// AWS backends are optional: without a bucket the server runs text-only,
	// without a table progress endpoints report unavailable.
	bucket := os.Getenv(assetBucketEnv)
	table := os.Getenv(progressTableEnv)

	var assets *storage.Store
	var progressStore progress.Store
	if bucket != "" || table != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load AWS config")
		}
		if bucket != "" {
			assets = storage.New(awsCfg, bucket)
			log.Info().Str("bucket", bucket).Msg("Asset storage enabled")
		}
		if table != "" {
			progressStore = progress.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), table)
			log.Info().Str("table", table).Msg("Reader progress enabled")
		}
	}
	if assets == nil {
		log.Warn().Msgf("%s not set; illustrations and compiled videos will not be stored", assetBucketEnv)
	}

	// The compiler and illustrator take the store through narrow interfaces;
	// leave them nil (not a typed nil) when storage is absent.
	var compileStore compile.AssetStore
	var illustrator story.Illustrator
	var bundler *bundle.Builder
	if assets != nil {
		compileStore = assets
		bundler = bundle.NewBuilder(assets)
		if !noImagesFlag {
			illustrator = illustrate.New(client, assets)
		}
	}

	registry := compile.NewRegistry()
	compiler := compile.NewService(compile.NewVeoService(client), compileStore, registry)
	engine := story.NewEngine(story.Config{Threshold: thresholdFlag}, gen.NewGenerator(client), illustrator, compiler)
	compiler.OnSuccess(engine.RecordCompiledAsset)

	srv := &server{
		engine:   engine,
		registry: registry,
		progress: progressStore,
		bundler:  bundler,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/story/start", srv.handleStoryStart)
	mux.HandleFunc("/api/story/continue", srv.handleStoryContinue)
	mux.HandleFunc("/api/story/status", srv.handleStoryStatus)
	mux.HandleFunc("/api/story/reset", srv.handleStoryReset)
	mux.HandleFunc("/api/story/bundle", srv.handleStoryBundle)
	mux.HandleFunc("/api/video/compile", srv.handleVideoCompile)
	mux.HandleFunc("/api/video/status", srv.handleVideoStatus)
	mux.HandleFunc("/api/progress", srv.handleProgress)
	mux.HandleFunc("/api/progress/story", srv.handleProgressStory)
	mux.HandleFunc("/api/progress/stories", srv.handleProgressStories)

	handler := withLogging(withCORS(mux))

	addr := fmt.Sprintf(":%d", portFlag)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(ctx)
	}()

	log.Info().Int("port", portFlag).Msg("Starting story server")
	fmt.Printf("\n  StoryWeaver API: http://localhost:%d/api/health\n\n", portFlag)

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
