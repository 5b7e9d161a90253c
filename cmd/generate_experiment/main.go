// Command generate_experiment writes a synthetic experiment directory for
// trying out sleepeval: several base models, one of them a mixture of
// experts, sharing a ground-truth hypnogram per subject.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ahrav/go-sleepeval/infrastructure/store"
	"github.com/ahrav/go-sleepeval/internal/testutils"
)

func main() {
	var (
		outputPath = flag.String("output", "testdata/experiment", "Experiment root directory")
		subjects   = flag.Int("subjects", 10, "Number of subjects to generate")
		epochs     = flag.Int("epochs", 900, "Number of 30-second epochs per subject")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		format     = flag.String("format", "json", "Record encoding: json or yaml")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	spec := testutils.DefaultExperimentSpec()
	spec.Subjects = *subjects
	spec.Epochs = *epochs

	if err := os.MkdirAll(*outputPath, 0o755); err != nil {
		logger.Error("failed to create output directory", "path", *outputPath, "error", err)
		os.Exit(1)
	}
	fs, err := store.NewFileStore(store.FileStoreConfig{Root: *outputPath, Format: store.Format(*format)}, logger, nil)
	if err != nil {
		logger.Error("failed to open experiment root", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	records := testutils.GenerateExperiment(spec, *seed)
	for _, rec := range records {
		if err := fs.Write(ctx, rec); err != nil {
			logger.Error("failed to write record", "model", rec.ModelID, "subject", rec.SubjectID, "error", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generated synthetic experiment:\n")
	fmt.Printf("- Path: %s\n", *outputPath)
	fmt.Printf("- Seed: %d\n", *seed)
	fmt.Printf("- Subjects: %d x %d epochs\n", spec.Subjects, spec.Epochs)
	for _, m := range spec.Models {
		fmt.Printf("- %s: accuracy %.0f%%, attention %t, experts %v\n", m.Name, 100*m.Accuracy, m.Attention, m.Experts)
	}
	fmt.Printf("- Records written: %d\n", len(records))
}
