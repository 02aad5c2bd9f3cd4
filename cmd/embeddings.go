package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kozaktomas/labface/internal/config"
	"github.com/kozaktomas/labface/internal/encoder"
	"github.com/kozaktomas/labface/internal/enrollment"
	"github.com/kozaktomas/labface/internal/index"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var embeddingsCmd = &cobra.Command{
	Use:   "embeddings",
	Short: "Manage stored face embeddings",
}

var embeddingsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count stored embeddings per model",
	RunE:  runEmbeddingsCount,
}

var embeddingsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Bulk enroll embeddings from a JSON lines file",
	Long: `Bulk enroll embeddings from a JSON lines file.
Each line is an object with "subject_id" and either "vector" (array of numbers)
or "image_path" (image file, relative to the import file). "model_name" is
optional and defaults to --model.

  {"subject_id": "2021-0001", "vector": [0.12, -0.03, ...]}
  {"subject_id": "2021-0002", "image_path": "captures/2021-0002.jpg"}`,
	Args: cobra.ExactArgs(1),
	RunE: runEmbeddingsImport,
}

var embeddingsDeleteCmd = &cobra.Command{
	Use:   "delete SUBJECT",
	Short: "Delete every stored embedding of a subject",
	Args:  cobra.ExactArgs(1),
	RunE:  runEmbeddingsDelete,
}

func init() {
	rootCmd.AddCommand(embeddingsCmd)
	embeddingsCmd.AddCommand(embeddingsCountCmd)
	embeddingsCmd.AddCommand(embeddingsImportCmd)
	embeddingsCmd.AddCommand(embeddingsDeleteCmd)

	embeddingsCountCmd.Flags().Bool("json", false, "Output as JSON")

	embeddingsImportCmd.Flags().String("model", "", "Model name for lines without model_name (default MODEL_NAME)")
	embeddingsImportCmd.Flags().Bool("json", false, "Output as JSON")

	embeddingsDeleteCmd.Flags().String("model", "", "Model name (default MODEL_NAME)")
}

// modelCount is one row of the count output
type modelCount struct {
	ModelName string `json:"model_name"`
	Dim       int    `json:"dim"`
	Count     int    `json:"count"`
}

func runEmbeddingsCount(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	models := modelNames(cfg)
	counts := make([]modelCount, 0, len(models))
	for _, name := range models {
		n, err := store.Count(ctx, name)
		if err != nil {
			return fmt.Errorf("counting %s embeddings: %w", name, err)
		}
		counts = append(counts, modelCount{ModelName: name, Dim: cfg.ModelDim(name), Count: n})
	}

	if jsonOutput {
		return outputJSON(counts)
	}
	for _, c := range counts {
		marker := ""
		if c.ModelName == cfg.Matching.ModelName {
			marker = " (active)"
		}
		fmt.Printf("%-20s dim=%-4d %d embeddings%s\n", c.ModelName, c.Dim, c.Count, marker)
	}
	return nil
}

// modelNames lists the active model first, followed by the rest of the registry.
func modelNames(cfg *config.Config) []string {
	names := []string{cfg.Matching.ModelName}
	for name := range cfg.Models.Models {
		if name != cfg.Matching.ModelName {
			names = append(names, name)
		}
	}
	slices.Sort(names[1:])
	return names
}

// importLine is one line of an import file
type importLine struct {
	SubjectID string    `json:"subject_id"`
	ModelName string    `json:"model_name,omitempty"`
	Vector    []float32 `json:"vector,omitempty"`
	ImagePath string    `json:"image_path,omitempty"`
}

// importSummary is the result of an import run
type importSummary struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// readImportFile parses a JSON lines file, skipping blank lines.
func readImportFile(path string) ([]importLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	var lines []importLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var line importLine
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if line.Vector == nil && line.ImagePath == "" {
			return nil, fmt.Errorf("line %d: either vector or image_path is required", lineNo)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading import file: %w", err)
	}
	return lines, nil
}

// lineVector returns the vector of an import line, encoding its image when needed.
func lineVector(ctx context.Context, enc *encoder.Client, baseDir string, line importLine) ([]float32, error) {
	if line.Vector != nil {
		return line.Vector, nil
	}
	path := line.ImagePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return enc.EncodeFace(ctx, data)
}

func runEmbeddingsImport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")
	if model := mustGetString(cmd, "model"); model != "" {
		cfg.Matching.ModelName = model
	}

	lines, err := readImportFile(args[0])
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return errors.New("import file contains no embeddings")
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// New vectors are checked against the dimension already in the store.
	eng, err := newEngine(ctx, cfg, store)
	if err != nil {
		return err
	}
	enc := encoder.NewClient(cfg.Encoder.URL, cfg.Encoder.MaxImageSize)
	baseDir := filepath.Dir(args[0])

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(lines),
			progressbar.OptionSetDescription("Importing embeddings"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("embeddings"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	var summary importSummary
	for i, line := range lines {
		err := importOne(ctx, eng.coordinator, enc, baseDir, line)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("entry %d (%s): %v", i+1, line.SubjectID, err))
			// the store is unreachable, later lines would fail the same way
			if errors.Is(err, enrollment.ErrPersistence) {
				break
			}
		} else {
			summary.Imported++
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	if jsonOutput {
		return outputJSON(summary)
	}
	fmt.Printf("\nImported %d embeddings, %d failed\n", summary.Imported, summary.Failed)
	for _, e := range summary.Errors {
		fmt.Printf("  - %s\n", e)
	}
	return nil
}

func importOne(ctx context.Context, c *enrollment.Coordinator, enc *encoder.Client, baseDir string, line importLine) error {
	vector, err := lineVector(ctx, enc, baseDir, line)
	if err != nil {
		return err
	}
	_, err = c.Enroll(ctx, line.SubjectID, vector, line.ModelName)
	if errors.Is(err, index.ErrDimensionMismatch) {
		return fmt.Errorf("%w (model %s)", err, c.ModelName())
	}
	return err
}

func runEmbeddingsDelete(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()
	model := mustGetString(cmd, "model")
	if model == "" {
		model = cfg.Matching.ModelName
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	subjectID := enrollment.NormalizeSubjectID(args[0])
	if subjectID == "" {
		return enrollment.ErrInvalidSubject
	}
	removed, err := store.DeleteBySubject(ctx, subjectID, model)
	if err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}

	fmt.Printf("Deleted %d embeddings for %s (model %s)\n", removed, subjectID, model)
	return nil
}
