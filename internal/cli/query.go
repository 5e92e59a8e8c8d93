package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/metrics"
	"github.com/roach88/selectapi/internal/projection"
	"github.com/roach88/selectapi/internal/query"
	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/wire"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Store StoreOptions

	Fields        string
	IDs           string
	Filters       []string
	Limit         string
	Offset        string
	Generic       bool
	IgnoreInvalid bool
	OmitID        bool
	Concurrency   int
	BaseURL       string
	MetricsFile   string

	// RequestIDs allows overriding the request id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RequestIDs projection.RequestIDGenerator
}

// QueryResult is the output of the query command.
type QueryResult struct {
	Model     string                 `json:"model"`
	Selection string                 `json:"selection"`
	Records   []*record.ClientRecord `json:"records"`
	Page      *query.Page            `json:"page,omitempty"`
	Next      string                 `json:"next,omitempty"`
	Prev      string                 `json:"prev,omitempty"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <specs-dir> <model>",
		Short: "Fetch and project records with a field selection",
		Long: `Fetch records of a model from the store and project them with a
client field selection. Related models are resolved with one batched
lookup per field.

With --ids the records are returned in the order given. Otherwise the
model is listed, optionally filtered on its filter fields, one page at
a time; next and prev links are printed for the page.

Example:
  selectapi query --db ./blog.db ./models Post --fields "title,author(name)"
  selectapi query --db ./blog.db ./models Post --ids 10,11
  selectapi query --db ./blog.db ./models Post --filter category=go --limit 5 --offset 5
  selectapi query --mongo-uri mongodb://localhost:27017 ./models User`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	addStoreFlags(cmd, &opts.Store)
	cmd.Flags().StringVar(&opts.Fields, "fields", "", "field selection, e.g. title,author(name)")
	cmd.Flags().StringVar(&opts.IDs, "ids", "", "comma-separated record ids")
	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "filter as field=value (repeatable)")
	cmd.Flags().StringVar(&opts.Limit, "limit", "", "page size (1-50, default 10)")
	cmd.Flags().StringVar(&opts.Offset, "offset", "", "page offset (0-1000, default 0)")
	cmd.Flags().BoolVar(&opts.Generic, "generic", false, "keep unknown field names")
	cmd.Flags().BoolVar(&opts.IgnoreInvalid, "ignore-invalid", false, "drop unknown field names instead of failing")
	cmd.Flags().BoolVar(&opts.OmitID, "omit-id", false, "do not add the id field to the selection")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", projection.DefaultConcurrency, "fields resolved in parallel")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "base URL for pagination links (default /<model url name>)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file")

	return cmd
}

func runQuery(ctx context.Context, opts *QueryOptions, specsDir, modelName string, cmd *cobra.Command) error {
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
	model, err := catalog.Registry.Lookup(modelName)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown model", err)
	}

	lookup, err := buildLookup(opts)
	if err != nil {
		return queryError(formatter, err)
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

	var collector *metrics.Collector
	engineOpts := []projection.Option{
		projection.WithLogger(logger),
		projection.WithConcurrency(opts.Concurrency),
	}
	if opts.RequestIDs != nil {
		engineOpts = append(engineOpts, projection.WithRequestIDs(opts.RequestIDs))
	}
	if opts.MetricsFile != "" {
		collector = metrics.NewCollector("selectapi")
		engineOpts = append(engineOpts, projection.WithMetrics(collector))
	}
	eng, err := newEngine(catalog, st, engineOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeBuildFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to bind models", err)
	}

	sel, err := query.Parse(opts.Fields, model, catalog.Registry, query.Options{
		Generic:       opts.Generic,
		IgnoreInvalid: opts.IgnoreInvalid,
		OmitID:        opts.OmitID,
	})
	if err != nil {
		return queryError(formatter, err)
	}
	formatter.VerboseLog("Selection: %s", query.Format(sel))

	res, err := eng.Find(ctx, &projection.Request{}, model, sel, lookup)
	if collector != nil {
		if werr := prometheus.WriteToTextfile(opts.MetricsFile, collector.Registry()); werr != nil {
			logger.Error("failed to write metrics", "path", opts.MetricsFile, "error", werr)
		}
	}
	if err != nil {
		return queryError(formatter, err)
	}

	result := QueryResult{
		Model:     model.Name,
		Selection: query.Format(sel),
		Records:   res.Records,
	}
	if len(lookup.IDs) == 0 {
		page := res.Page
		result.Page = &page
		base, err := pageBase(opts.BaseURL, model.URLName)
		if err != nil {
			return queryError(formatter, err)
		}
		result.Next, result.Prev = page.Links(base, len(res.Records))
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputQueryText(formatter, result)
}

// buildLookup converts the id, filter and page flags.
func buildLookup(opts *QueryOptions) (projection.Lookup, error) {
	var lk projection.Lookup
	if opts.IDs != "" {
		for _, raw := range strings.Split(opts.IDs, ",") {
			lk.IDs = append(lk.IDs, parseScalar(strings.TrimSpace(raw)))
		}
	}
	if len(opts.Filters) > 0 {
		lk.Filter = make(map[string]any, len(opts.Filters))
		for _, f := range opts.Filters {
			name, value, ok := strings.Cut(f, "=")
			if !ok || name == "" {
				return lk, apierr.Validation("invalid filter %q: must be field=value", f)
			}
			lk.Filter[name] = parseScalar(value)
		}
	}
	page, err := query.ParsePage(opts.Limit, opts.Offset)
	if err != nil {
		return lk, err
	}
	lk.Page = page
	return lk, nil
}

// parseScalar reads integers as int64 and everything else as a string.
func parseScalar(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

func pageBase(raw, urlName string) (*url.URL, error) {
	if raw == "" {
		raw = "/" + urlName
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, apierr.Validation("invalid base URL %q", raw)
	}
	return u, nil
}

// queryError reports a failed query.
func queryError(formatter *OutputFormatter, err error) error {
	code := string(apierr.CodeOf(err))
	if code == "" {
		code = ErrCodeQuery
	}
	var details any
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		details = map[string]any{"fields": apiErr.Fields}
	}
	_ = formatter.Error(code, err.Error(), details)
	return WrapExitError(exitCodeFor(err), "query failed", err)
}

func outputQueryText(formatter *OutputFormatter, result QueryResult) error {
	w := formatter.Writer
	for _, rec := range result.Records {
		data, err := wire.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
		fmt.Fprintln(w, string(data))
	}
	fmt.Fprintf(w, "\n%d %s record(s), fields: %s\n", len(result.Records), result.Model, result.Selection)
	if result.Next != "" {
		fmt.Fprintf(w, "next: %s\n", result.Next)
	}
	if result.Prev != "" {
		fmt.Fprintf(w, "prev: %s\n", result.Prev)
	}
	return nil
}
