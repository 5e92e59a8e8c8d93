package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/selectapi/internal/field"
	"github.com/roach88/selectapi/internal/schema"
)

// FieldInfo describes one field of a model.
type FieldInfo struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Target      string   `json:"target,omitempty"`
	Description string   `json:"description,omitempty"`
	Selectable  bool     `json:"selectable"`
	Default     bool     `json:"default"`
	Filter      bool     `json:"filter,omitempty"`
	Modifiable  bool     `json:"modifiable,omitempty"`
	Formats     []string `json:"formats,omitempty"`
}

// FieldsResult is the output of the fields command.
type FieldsResult struct {
	Model    string      `json:"model"`
	Help     string      `json:"help"`
	Fields   []FieldInfo `json:"fields"`
	Defaults []string    `json:"defaults"`
	Create   []string    `json:"create"`
	Modify   []string    `json:"modify"`
	Filters  []string    `json:"filters"`
}

// NewFieldsCommand creates the fields command.
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields <specs-dir> <model>",
		Short: "List the fields a client may select on a model",
		Long: `List a model's fields in declaration order, with the default
selection and the create, modify and filter subsets.

Example:
  selectapi fields ./models Post
  selectapi fields ./models Post --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runFields(opts *RootOptions, specsDir, modelName string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	catalog, err := LoadCatalog(specsDir)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load specs", err)
	}
	model, err := catalog.Registry.Lookup(modelName)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown model", err)
	}

	result := describeFields(model)
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputFieldsText(formatter, result)
}

func describeFields(model *schema.Schema) FieldsResult {
	result := FieldsResult{
		Model:    model.Name,
		Help:     model.FieldsHelp(),
		Defaults: schema.Names(model.Defaults()),
		Create:   schema.Names(model.CreateFields()),
		Modify:   schema.Names(model.ModifyFields()),
		Filters:  schema.Names(model.FilterFields()),
	}
	for _, f := range model.Fields() {
		result.Fields = append(result.Fields, FieldInfo{
			Name:        f.Name,
			Kind:        kindLabel(f),
			Target:      f.Target,
			Description: f.Description,
			Selectable:  f.Selectable,
			Default:     f.Default,
			Filter:      f.Filter,
			Modifiable:  f.Modifiable,
			Formats:     f.Formats,
		})
	}
	return result
}

// kindLabel renders list kinds with their element, e.g. array<string>.
func kindLabel(f *field.Spec) string {
	switch {
	case f.Kind == field.Array && f.Elem != nil:
		return fmt.Sprintf("array<%s>", kindLabel(f.Elem))
	case f.Kind == field.Object && f.Elem != nil:
		key := string(field.String)
		if f.Key != nil {
			key = kindLabel(f.Key)
		}
		return fmt.Sprintf("object<%s,%s>", key, kindLabel(f.Elem))
	default:
		return string(f.Kind)
	}
}

func outputFieldsText(formatter *OutputFormatter, result FieldsResult) error {
	w := formatter.Writer
	fmt.Fprintf(w, "%s\n\n", result.Model)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tKIND\tTARGET\tFLAGS")
	for _, f := range result.Fields {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name, f.Kind, f.Target, fieldFlags(f))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, result.Help)
	fmt.Fprintf(w, "Defaults: %s\n", strings.Join(result.Defaults, ","))
	if len(result.Filters) > 0 {
		fmt.Fprintf(w, "Filters: %s\n", strings.Join(result.Filters, ","))
	}
	return nil
}

func fieldFlags(f FieldInfo) string {
	var flags []string
	if !f.Selectable {
		flags = append(flags, "hidden")
	}
	if f.Default {
		flags = append(flags, "default")
	}
	if f.Filter {
		flags = append(flags, "filter")
	}
	if f.Modifiable {
		flags = append(flags, "modifiable")
	}
	return strings.Join(flags, ",")
}
