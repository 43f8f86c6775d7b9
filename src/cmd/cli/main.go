package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"textlens/src/apperr"
	"textlens/src/config"
	"textlens/src/job"
	"textlens/src/presenter"
	"textlens/src/runtimeinit"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

type cliOptions struct {
	filePath    string
	jsonOutput  bool
	verbose     bool
	ocrOnly     bool
	engine      string
	storagePath string
}

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// TextRecognizer and Analyzer are the two pipeline stages.
type TextRecognizer interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, text string) (string, error)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args), streams{in: os.Stdin, out: os.Stdout, err: os.Stderr})
}

func runWithArgs(args []string, s streams) error {
	if len(args) == 0 {
		args = []string{"textlens-cli"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts, s)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions, s streams) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "textlens-cli",
		Short:         "Read text from a PNG and analyze it",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(cmd.Context(), *opts, s)
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().BoolVar(&opts.ocrOnly, "ocr-only", false, "Skip the analysis step")
	cmd.Flags().StringVar(&opts.engine, "engine", "", "OCR engine (tesseract|vision)")
	cmd.Flags().StringVar(&opts.storagePath, "storage-path", "", "Credential file for the file backend")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runWithOptions(ctx context.Context, opts cliOptions, s streams) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// Configure logging before anything else logs.
	if !opts.verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(s.err)
		fmt.Fprintf(s.err, "[verbose] Starting textlens-cli\n")
	}

	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: config.LoadOptions{OCREngine: opts.engine, StoragePath: opts.storagePath},
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	if opts.verbose {
		fmt.Fprintf(s.err, "[verbose] Config loaded: Model=%s Engine=%s\n", rt.LLM.Model, rt.Config.OCREngine)
	}

	var analyzer Analyzer = rt.LLM
	if opts.ocrOnly {
		analyzer = nil
	}
	return runPipeline(ctx, rt.Recognizer, analyzer, opts, s)
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "json", "verbose", "ocr-only", "engine", "storage-path"} {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}

	return normalized
}

func readInput(filePath string, s streams, verbose bool) ([]byte, error) {
	var (
		imageData []byte
		err       error
	)
	if filePath == "-" {
		if verbose {
			fmt.Fprintf(s.err, "[verbose] Reading image from stdin\n")
		}
		imageData, err = io.ReadAll(io.LimitReader(s.in, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		if verbose {
			fmt.Fprintf(s.err, "[verbose] Reading image from file: %s\n", filePath)
		}
		imageData, err = os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
	}

	if len(imageData) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	if err := validatePNG(imageData); err != nil {
		return nil, err
	}
	if verbose {
		fmt.Fprintf(s.err, "[verbose] Read %d bytes, PNG validation passed\n", len(imageData))
	}
	return imageData, nil
}

func validatePNG(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("input file is empty")
	}
	if len(data) < len(pngMagic) || !bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return fmt.Errorf("input is not a valid PNG file (invalid magic number)")
	}
	return nil
}

// runPipeline reads the image, recognizes it and, unless analyzer is nil,
// analyzes the text. Only the result goes to stdout.
func runPipeline(ctx context.Context, rec TextRecognizer, analyzer Analyzer, opts cliOptions, s streams) error {
	imageData, err := readInput(opts.filePath, s, opts.verbose)
	if err != nil {
		return err
	}

	start := time.Now()
	text, err := rec.Recognize(ctx, imageData)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return apperr.OCREmpty()
	}
	if opts.verbose {
		fmt.Fprintf(s.err, "[verbose] OCR extracted %d characters in %v\n", len(text), time.Since(start))
	}

	var analysis string
	if analyzer != nil {
		if analysis, err = analyzer.Analyze(ctx, text); err != nil {
			return apperr.WithStage("analysis", err)
		}
		if opts.verbose {
			fmt.Fprintf(s.err, "[verbose] Analysis completed, %d characters\n", len(analysis))
		}
	}

	return outputResult(s.out, Result{
		Text:      text,
		Analysis:  analysis,
		Source:    opts.filePath,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  time.Since(start).Seconds(),
		CharCount: len(text),
	}, opts.jsonOutput)
}

type Result struct {
	Text      string  `json:"text"`
	Analysis  string  `json:"analysis,omitempty"`
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
	CharCount int     `json:"character_count"`
}

func outputResult(w io.Writer, r Result, jsonOutput bool) error {
	if jsonOutput {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(r); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
		return nil
	}

	if r.Analysis == "" {
		fmt.Fprint(w, r.Text)
		return nil
	}
	fmt.Fprintln(w, presenter.CopyText(job.Job{ExtractedText: r.Text, Analysis: r.Analysis}))
	return nil
}
