package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/marlefranco/VidExtract/internal/batch"
	"github.com/marlefranco/VidExtract/internal/config"
	"github.com/marlefranco/VidExtract/internal/logging"
	"github.com/marlefranco/VidExtract/internal/ocr"
	"github.com/marlefranco/VidExtract/internal/pipeline"
	"github.com/marlefranco/VidExtract/internal/search"
	"github.com/marlefranco/VidExtract/internal/timestamp"
	"github.com/marlefranco/VidExtract/internal/video"
	"github.com/marlefranco/VidExtract/pkg/util"
)

const version = "0.1.0"

var (
	cfgFile string
	verbose bool

	videoPath  string
	startStr   string
	endStr     string
	outputPath string
	parentDir  string
	frameIndex int
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := remediation(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vidextract",
	Short: "vidextract - timestamp-guided video snippet extraction",
	Long: "Extracts snippets from recordings with burned-in overlay timestamps by\n" +
		"reading the overlay via OCR and locating the requested wall-clock range.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./vidextract.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	extractCmd.Flags().StringVar(&videoPath, "video", "", "input video file")
	extractCmd.Flags().StringVar(&startStr, "start", "", "start timestamp, e.g. 13/06/2025 13:28:27:657")
	extractCmd.Flags().StringVar(&endStr, "end", "", "end timestamp")
	extractCmd.Flags().StringVar(&outputPath, "output", "", "output file (default: input with _snippet suffix)")
	extractCmd.MarkFlagRequired("video")
	extractCmd.MarkFlagRequired("start")
	extractCmd.MarkFlagRequired("end")

	batchCmd.Flags().StringVar(&videoPath, "video", "", "input video file")
	batchCmd.Flags().StringVar(&parentDir, "dir", "", "parent directory containing rangetime.txt folders")
	batchCmd.MarkFlagRequired("video")
	batchCmd.MarkFlagRequired("dir")

	previewCmd.Flags().StringVar(&videoPath, "video", "", "input video file")
	previewCmd.Flags().IntVar(&frameIndex, "frame", -1, "frame to preview (default: a tenth of the way in)")
	previewCmd.MarkFlagRequired("video")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a snippet between two overlay timestamps",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		req, err := buildRequest(cfg)
		if err != nil {
			return err
		}

		bar := newProgressBar()
		req.Progress = func(pct int, msg string) {
			bar.Describe(msg)
			bar.Set(pct)
		}

		res, err := pipeline.New(log.Logger).ExtractSnippet(cmd.Context(), req)
		bar.Finish()
		fmt.Println()
		if err != nil {
			return err
		}

		fmt.Printf("Wrote %d frames to %s in %s\n",
			res.FramesWritten, res.OutputPath, util.FormatDuration(res.Elapsed))
		if !res.EndFound {
			fmt.Println("Note: end timestamp was not found; extracted through the end of the video.")
		}
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract every segment declared by rangetime.txt files under a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		template, err := tuningRequest(cfg)
		if err != nil {
			return err
		}

		bar := newProgressBar()
		runner := batch.New(log.Logger, pipeline.New(log.Logger))
		processed, total, err := runner.Run(cmd.Context(), batch.Options{
			VideoPath: videoPath,
			ParentDir: parentDir,
			Request:   template,
			Progress: func(pct int, msg string) {
				bar.Describe(msg)
				bar.Set(pct)
			},
		})
		bar.Finish()
		fmt.Println()
		if err != nil {
			return err
		}

		fmt.Printf("Processed %d of %d segments\n", processed, total)
		if processed < total {
			return fmt.Errorf("%d segment(s) failed", total-processed)
		}
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show what the OCR chain reads from a single frame",
	Long: "Reads one frame, crops the configured overlay region, runs OCR and the\n" +
		"timestamp parser, and prints each stage. Use it to verify the region and\n" +
		"patterns before a long extraction.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPreview(cmd.Context(), config.FromContext(cmd.Context()))
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that external dependencies are available",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ocr.CheckTesseract(); err != nil {
			fmt.Println("tesseract: NOT FOUND")
			return err
		}
		fmt.Println("tesseract: ok")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("vidextract", version)
	},
}

// buildRequest assembles a full extraction request from flags and config.
func buildRequest(cfg *config.Config) (pipeline.Request, error) {
	req, err := tuningRequest(cfg)
	if err != nil {
		return pipeline.Request{}, err
	}

	patterns := req.Patterns
	start, ok := timestamp.Parse(startStr, patterns, time.Time{}, false)
	if !ok {
		return pipeline.Request{}, fmt.Errorf("cannot parse start timestamp %q (expected e.g. 13/06/2025 13:28:27:657)", startStr)
	}
	end, ok := timestamp.Parse(endStr, patterns, start, false)
	if !ok {
		return pipeline.Request{}, fmt.Errorf("cannot parse end timestamp %q", endStr)
	}
	if timestamp.Compare(start, end, req.TimeOnly) >= 0 {
		return pipeline.Request{}, fmt.Errorf("start timestamp must be before end timestamp")
	}

	req.VideoPath = videoPath
	req.OutputPath = outputPath
	if req.OutputPath == "" {
		req.OutputPath = util.WithSuffix(videoPath, "_snippet")
	}
	req.Start = start
	req.End = end
	return req, nil
}

// tuningRequest carries only the config-derived tuning fields, leaving paths
// and the time range for the caller.
func tuningRequest(cfg *config.Config) (pipeline.Request, error) {
	region, err := cfg.Region()
	if err != nil {
		return pipeline.Request{}, err
	}
	patterns, err := cfg.TimestampPatterns()
	if err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{
		Region:    region,
		Patterns:  patterns,
		BaseStep:  cfg.Search.BaseStep,
		Timeout:   cfg.SearchTimeout(),
		ChunkSize: cfg.Extract.ChunkSize,
		FourCC:    cfg.Extract.FourCC,
		TimeOnly:  cfg.Search.PrioritizeTimeOfDay,
	}, nil
}

// runPreview exercises the frame -> region -> OCR -> parse chain once and
// prints every intermediate result.
func runPreview(ctx context.Context, cfg *config.Config) error {
	region, err := cfg.Region()
	if err != nil {
		return err
	}
	patterns, err := cfg.TimestampPatterns()
	if err != nil {
		return err
	}

	src, err := video.OpenSource(log.Logger, videoPath)
	if err != nil {
		return err
	}
	defer src.Close()

	rec, err := ocr.NewTesseract(log.Logger)
	if err != nil {
		return err
	}
	defer rec.Close()

	frame := frameIndex
	if frame < 0 {
		frame = src.FrameCount() / 10
	}

	reader := search.NewFrameReader(log.Logger, src, rec, ocr.NewCache(), search.ReaderConfig{
		Region:              region,
		Patterns:            patterns,
		PrioritizeTimeOfDay: cfg.Search.PrioritizeTimeOfDay,
	})

	width, height := src.Dimensions()
	fmt.Printf("Video: %s (%d frames, %.2f fps, %dx%d)\n",
		videoPath, src.FrameCount(), src.FPS(), width, height)
	fmt.Printf("Frame: %d\n", frame)
	fmt.Printf("Region: %s %dx%d -> %v\n",
		region.Placement, region.Width, region.Height, region.Coords(width, height))

	ts, ok, err := reader.ReadTimestamp(ctx, frame)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Timestamp: not recognized (adjust the region or patterns, or try another frame)")
		return nil
	}
	fmt.Printf("Timestamp: %s\n", timestamp.Format(ts, "02/01/2006 15:04:05:000"))
	return nil
}

func newProgressBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stdout),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
	)
}

// remediation maps the fatal error classes to actionable advice.
func remediation(err error) string {
	switch {
	case errors.Is(err, ocr.ErrEngineUnavailable):
		return "Tesseract OCR is required. Install it and make sure the binary is on your PATH:\n" +
			"  https://github.com/UB-Mannheim/tesseract/wiki (Windows)\n" +
			"  apt install tesseract-ocr / brew install tesseract"
	case errors.Is(err, search.ErrTimeout):
		return "The timestamp search ran out of time. Raise search.timeout_seconds in the config,\n" +
			"or narrow the range with a better start estimate."
	case errors.Is(err, pipeline.ErrStartNotFound):
		return "No frame with the start timestamp was found. Run 'vidextract preview' to check\n" +
			"that the overlay region and patterns match your video."
	default:
		return ""
	}
}
