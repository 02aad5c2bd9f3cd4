package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/labface/internal/config"
	"github.com/kozaktomas/labface/internal/encoder"
	"github.com/kozaktomas/labface/internal/matcher"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Identify the closest enrolled subject for a face",
	Long: `Load the embeddings index from the database and match a single query.
The query is either a vector given as a JSON array or an image file that is
sent to the face encoder.

Examples:
  labface match --vector '[0.12, -0.03, 0.41]'
  labface match --image capture.jpg --threshold 0.5 --top 5`,
	Args: cobra.NoArgs,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("vector", "", "Query embedding as a JSON array")
	matchCmd.Flags().String("image", "", "Image file to encode as the query")
	matchCmd.Flags().Float64("threshold", -1, "Maximum distance for a match (default MATCH_THRESHOLD)")
	matchCmd.Flags().Int("top", 0, "Also list the N nearest subjects")
	matchCmd.Flags().Bool("json", false, "Output as JSON")
}

// matchOutput is the JSON form of a CLI match
type matchOutput struct {
	Matched    bool            `json:"matched"`
	SubjectID  string          `json:"subject_id,omitempty"`
	Distance   float64         `json:"distance"`
	Confidence float64         `json:"confidence"`
	Reason     string          `json:"reason,omitempty"`
	Nearest    []neighborEntry `json:"nearest,omitempty"`
}

type neighborEntry struct {
	SubjectID  string  `json:"subject_id"`
	Distance   float64 `json:"distance"`
	Confidence float64 `json:"confidence"`
}

// parseVectorFlag parses a JSON array of numbers.
func parseVectorFlag(s string) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(s), &vec); err != nil {
		return nil, fmt.Errorf("invalid --vector, expected a JSON array of numbers: %w", err)
	}
	return vec, nil
}

// resolveQuery reads the query vector from --vector or --image.
func resolveQuery(ctx context.Context, cmd *cobra.Command, cfg *config.Config) ([]float32, error) {
	vectorFlag := mustGetString(cmd, "vector")
	imageFlag := mustGetString(cmd, "image")

	switch {
	case vectorFlag != "" && imageFlag != "":
		return nil, errors.New("--vector and --image are mutually exclusive")
	case vectorFlag != "":
		return parseVectorFlag(vectorFlag)
	case imageFlag != "":
		data, err := os.ReadFile(imageFlag)
		if err != nil {
			return nil, fmt.Errorf("reading image: %w", err)
		}
		enc := encoder.NewClient(cfg.Encoder.URL, cfg.Encoder.MaxImageSize)
		return enc.EncodeFace(ctx, data)
	default:
		return nil, errors.New("either --vector or --image is required")
	}
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")
	top := mustGetInt(cmd, "top")
	threshold := mustGetFloat64(cmd, "threshold")
	if threshold < 0 {
		threshold = cfg.Matching.Threshold
	}

	query, err := resolveQuery(ctx, cmd, cfg)
	if errors.Is(err, encoder.ErrNoFace) {
		if jsonOutput {
			return outputJSON(matchOutput{Reason: "no_face_detected"})
		}
		fmt.Println("No face detected in image")
		return nil
	}
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	eng, err := newEngine(ctx, cfg, store)
	if err != nil {
		return err
	}

	result, err := eng.matcher.Match(query, threshold)
	if err != nil {
		return fmt.Errorf("matching: %w", err)
	}

	out := matchOutput{
		Matched:    result.Matched,
		SubjectID:  result.SubjectID,
		Distance:   result.Distance,
		Confidence: result.Confidence,
		Reason:     string(result.Reason),
	}
	if top > 0 && result.Reason != matcher.ReasonNoKnownSubjects {
		neighbors, err := eng.matcher.Nearest(query, top)
		if err != nil {
			return fmt.Errorf("listing nearest subjects: %w", err)
		}
		for _, n := range neighbors {
			out.Nearest = append(out.Nearest, neighborEntry(n))
		}
	}

	if jsonOutput {
		return outputJSON(out)
	}
	printMatch(out, threshold)
	return nil
}

func printMatch(out matchOutput, threshold float64) {
	switch {
	case out.Matched:
		fmt.Printf("\nMatched: %s (distance %.4f, confidence %.4f)\n", out.SubjectID, out.Distance, out.Confidence)
	case out.Reason == string(matcher.ReasonNoKnownSubjects):
		fmt.Println("\nNo known subjects in the index")
		return
	default:
		fmt.Printf("\nNo match within threshold %.2f (closest distance %.4f)\n", threshold, out.Distance)
	}

	if len(out.Nearest) > 0 {
		fmt.Println("\nNearest subjects:")
		for i, n := range out.Nearest {
			fmt.Printf("  %2d. %-24s distance %.4f  confidence %.4f\n", i+1, n.SubjectID, n.Distance, n.Confidence)
		}
	}
}
