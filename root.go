package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ytscribe/apify"
	"ytscribe/config"
	"ytscribe/db"
	"ytscribe/logging"
	"ytscribe/transcript"
	"ytscribe/youtube"
)

var (
	outputPath string
	jsonOut    bool
	format     string
	language   string
	noCache    bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ytscribe [URL or video ID]",
	Short: "Fetch YouTube transcripts through the Apify transcription actor",
	Example: `  ytscribe "https://youtube.com/watch?v=dQw4w9WgXcQ"
  ytscribe "https://youtu.be/dQw4w9WgXcQ" --json
  ytscribe dQw4w9WgXcQ --output transcript.txt
  ytscribe dQw4w9WgXcQ --format srt --lang de`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	rootCmd.Flags().BoolVarP(&jsonOut, "json", "j", false, "Output as JSON with timestamps (same as --format json)")
	rootCmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or srt")
	rootCmd.Flags().StringVarP(&language, "lang", "l", "", "Preferred transcript language (e.g. 'en', 'de')")
	rootCmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip the local transcript cache")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	godotenv.Load() // .env is optional

	cfg := config.LoadConfig()
	if err := logging.Setup(cfg.LogDir, verbose); err != nil {
		return errors.Wrap(err, "setting up logging")
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if cfg.APIToken == "" {
		fmt.Fprintln(os.Stderr, "APIFY_API_TOKEN environment variable not set.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Setup instructions:")
		fmt.Fprintln(os.Stderr, "1. Create free account: https://apify.com/")
		fmt.Fprintln(os.Stderr, "2. Get API token: https://console.apify.com/account/integrations")
		fmt.Fprintln(os.Stderr, "3. Export: export APIFY_API_TOKEN='apify_api_YOUR_TOKEN'")
		return errors.New("missing API token")
	}

	if jsonOut {
		format = "json"
	}
	if format != "text" && format != "json" && format != "srt" {
		return errors.Errorf("unknown format %q (expected text, json or srt)", format)
	}

	videoID, err := youtube.ExtractVideoID(args[0])
	if err != nil {
		return errors.Wrapf(err, "could not extract video ID from %q", args[0])
	}

	logrus.WithField("video_id", videoID).Info("Fetching transcript")

	record, cached, err := fetchRecord(cmd.Context(), cfg, videoID)
	if err != nil {
		return err
	}

	output, err := render(record, videoID)
	if err != nil {
		return err
	}
	if err := writeOutput(output); err != nil {
		return err
	}

	if !cached {
		fmt.Fprintln(os.Stderr, "\n[Cost: ~$0.007 per video]")
	}
	return nil
}

// fetchRecord consults the local cache first, then drives a remote run.
// Cache failures degrade to a fetch rather than failing the invocation.
func fetchRecord(ctx context.Context, cfg *config.Config, videoID string) (*transcript.Record, bool, error) {
	useCache := !noCache && cfg.DBPath != ""
	if useCache {
		if err := db.InitializeDB(cfg.DBPath); err != nil {
			logrus.WithError(err).Warn("Transcript cache unavailable")
			useCache = false
		} else {
			defer db.DB.Close()

			record, err := db.GetRecord(ctx, videoID, language)
			if err != nil {
				logrus.WithError(err).Warn("Cache lookup failed")
			} else if record != nil {
				logrus.WithField("video_id", videoID).Info("Using cached transcript")
				return record, true, nil
			}
		}
	}

	client := apify.NewClient(cfg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The remote run keeps billing even after this process dies, so an
	// interrupt aborts it best-effort before bailing out.
	var mu sync.Mutex
	var runID string
	client.OnRunStarted = func(id string) {
		mu.Lock()
		runID = id
		mu.Unlock()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	go func() {
		select {
		case <-sig:
			mu.Lock()
			id := runID
			mu.Unlock()
			if id != "" {
				abortCtx, abortCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer abortCancel()
				if err := client.Abort(abortCtx, id); err != nil {
					logrus.WithError(err).Warn("Failed to abort actor run")
				} else {
					logrus.WithField("run_id", id).Info("Aborted actor run")
				}
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	record, err := client.Run(ctx, videoID, language)
	if err != nil {
		return nil, false, err
	}

	if useCache {
		if err := db.SaveRecord(ctx, videoID, language, record); err != nil {
			logrus.WithError(err).Warn("Failed to cache transcript")
		}
	}

	return record, false, nil
}

func render(record *transcript.Record, videoID string) (string, error) {
	switch format {
	case "json":
		out, err := json.MarshalIndent(transcript.Structured(record, videoID), "", "  ")
		if err != nil {
			return "", errors.Wrap(err, "encoding JSON output")
		}
		return string(out), nil
	case "srt":
		return transcript.SRT(record), nil
	default:
		return transcript.Text(record), nil
	}
}

func writeOutput(output string) error {
	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(output), 0644); err != nil {
			return errors.Wrap(err, "writing output file")
		}
		logrus.WithField("path", outputPath).Info("Transcript saved")
		return nil
	}

	fmt.Println(output)
	return nil
}
