package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/selectapi/internal/compiler"
	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/schema"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Store StoreOptions
}

// SeedResult reports how many records were written per model.
type SeedResult struct {
	Inserted map[string]int `json:"inserted"`
	Skipped  map[string]int `json:"skipped"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <specs-dir> <data.yaml>",
		Short: "Insert records from a YAML data file",
		Long: `Insert records into the store from a YAML file mapping model names
to lists of records. Stored field values are checked against the model
before anything is written. Records whose id already exists are skipped.

Example:
  selectapi seed --db ./blog.db ./models ./data.yaml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	addStoreFlags(cmd, &opts.Store)

	return cmd
}

func runSeed(ctx context.Context, opts *SeedOptions, specsDir, dataFile string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	catalog, err := LoadCatalog(specsDir)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load specs", err)
	}

	data, err := loadSeedData(dataFile)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read data file", err)
	}
	if err := checkSeedData(catalog, data); err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid seed data", err)
	}

	st, err := openStore(ctx, opts.Store, catalog, logger)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	result := SeedResult{Inserted: map[string]int{}, Skipped: map[string]int{}}
	for _, name := range sortedModels(data) {
		model, _ := catalog.Registry.Lookup(name)
		for _, row := range data[name] {
			inserted, err := st.Insert(ctx, model, record.Row(row))
			if err != nil {
				_ = formatter.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to insert record", err)
			}
			if inserted {
				result.Inserted[name]++
			} else {
				result.Skipped[name]++
			}
		}
		logger.Info("records seeded", "model", name, "inserted", result.Inserted[name], "skipped", result.Skipped[name])
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	for _, name := range sortedModels(data) {
		fmt.Fprintf(formatter.Writer, "  %s: %d inserted, %d skipped\n", name, result.Inserted[name], result.Skipped[name])
	}
	fmt.Fprintln(formatter.Writer, "✓ Seed complete")
	return nil
}

// loadSeedData reads a model-name-to-records YAML document.
func loadSeedData(path string) (map[string][]map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading data file: %w", err)
	}
	var data map[string][]map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing data file: %w", err)
	}
	return data, nil
}

// checkSeedData rejects unknown models, records without an id and stored
// values of the wrong type.
func checkSeedData(catalog *compiler.Catalog, data map[string][]map[string]any) error {
	for _, name := range sortedModels(data) {
		model, err := catalog.Registry.Lookup(name)
		if err != nil {
			return err
		}
		for i, row := range data[name] {
			if err := checkRow(model, row); err != nil {
				return fmt.Errorf("%s[%d]: %w", name, i, err)
			}
		}
	}
	return nil
}

func checkRow(model *schema.Schema, row map[string]any) error {
	if _, ok := record.Key(row[model.IDField()]); !ok {
		return fmt.Errorf("missing id field %q", model.IDField())
	}
	for _, f := range model.Fields() {
		if !f.Kind.IsStored() {
			continue
		}
		if err := f.Validate(row[f.Name]); err != nil {
			return err
		}
	}
	return nil
}

func sortedModels(data map[string][]map[string]any) []string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
