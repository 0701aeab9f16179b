package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"phenoprofile/adapters/excel"
	"phenoprofile/adapters/postgres"
	"phenoprofile/adapters/report"
	"phenoprofile/app"
	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
	"phenoprofile/internal"
	"phenoprofile/internal/config"
	"phenoprofile/ports"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, core.ErrNoOptimum) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "phenoprofile",
		Short:         "Classify subjects by their deviation from a control group",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.preferencesDir, "preferences-dir", "", "Directory of <dataset>_direction_preferences.csv files (default: next to the data file)")

	rootCmd.AddCommand(
		newProfileCmd(opts),
		newPairedCmd(opts),
		newPreferencesCmd(opts),
	)
	return rootCmd
}

// rootOptions are the flags shared by every command
type rootOptions struct {
	configPath     string
	preferencesDir string
}

// setup loads configuration and installs the configured logger
func setup(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.preferencesDir != "" {
		cfg.Analysis.PreferencesDir = opts.preferencesDir
	}
	level := internal.ParseLogLevel(cfg.Logging.Level)
	if cfg.Logging.Format == "json" {
		internal.SetDefaultLogger(internal.NewJSONLogger(os.Stderr, level))
	} else {
		internal.SetDefaultLogger(internal.NewLogger(level))
	}
	return cfg, nil
}

// stores picks Postgres when a database is configured and preference files otherwise
func stores(ctx context.Context, cfg *config.Config, dataFile string) (ports.RunRepository, ports.PreferencesStore, func(), error) {
	if cfg.Database.Enabled() {
		db, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, nil, nil, err
		}
		return postgres.NewRunRepository(db), postgres.NewPreferencesRepository(db), func() { db.Close() }, nil
	}
	dir := cfg.Analysis.PreferencesDir
	if dir == "" {
		dir = filepath.Dir(dataFile)
	}
	return nil, excel.NewPreferencesFile(dir), func() {}, nil
}

// newWriter opens the result writer for the configured output format
func newWriter(cfg *config.Config, dataset string) (ports.ResultWriter, error) {
	if cfg.Output.Format == "xlsx" {
		return excel.NewXLSXWriter(filepath.Join(cfg.Output.Dir, dataset+"_results.xlsx"))
	}
	return excel.NewCSVWriter(cfg.Output.Dir, dataset)
}

// parameterFlags turns --params and --directions into a configuration; nil
// when neither is set.
func parameterFlags(params, directions []string) (profile.ParameterConfig, error) {
	if len(params) == 0 && len(directions) == 0 {
		return nil, nil
	}
	cfg := profile.ParameterConfig{}
	for _, p := range params {
		cfg = append(cfg, profile.ParameterSetting{Name: strings.ToLower(p), Selected: true, Direction: profile.DirectionBoth})
	}
	for _, d := range directions {
		name, value, ok := strings.Cut(d, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q, expected name=direction", core.ErrUnknownDirection, d)
		}
		dir, err := profile.ParseDirection(value)
		if err != nil {
			return nil, err
		}
		name = strings.ToLower(strings.TrimSpace(name))
		found := false
		for i := range cfg {
			if cfg[i].Name == name {
				cfg[i].Direction = dir
				found = true
			}
		}
		if !found {
			cfg = append(cfg, profile.ParameterSetting{Name: name, Direction: dir})
		}
	}
	return cfg, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newProfileCmd(opts *rootOptions) *cobra.Command {
	var (
		control    int
		groups     []string
		params     []string
		directions []string
		autoSelect bool
		twoTier    bool
		high       float64
		medium     float64
		mediumCut  float64
		highCut    float64
		outputDir  string
		format     string
		reportFmt  string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "profile <data-file>",
		Short: "Sweep deviation thresholds and classify every subject",
		Long: `Read a CSV or XLSX table (group, subject, parameters...), find the
threshold and parameter count that best separate treated groups from control,
and classify each subject as affected or not.

Example: phenoprofile profile cohort.xlsx --control 0 --params distance,rearing --tiers`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(opts)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("control") {
				cfg.Analysis.Control = control
			}
			if flags.Changed("auto-select") {
				cfg.Analysis.Selection.Auto = autoSelect
			}
			if flags.Changed("high") {
				cfg.Analysis.Tiers.High = high
			}
			if flags.Changed("medium") {
				cfg.Analysis.Tiers.Medium = medium
			}
			if flags.Changed("medium-cut") {
				cfg.Analysis.Tiers.MediumCut = &mediumCut
			}
			if flags.Changed("high-cut") {
				cfg.Analysis.Tiers.HighCut = &highCut
			}
			if outputDir != "" {
				cfg.Output.Dir = outputDir
			}
			if format != "" {
				cfg.Output.Format = format
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			groupIDs := make([]core.GroupID, 0, len(groups))
			for _, g := range groups {
				id, err := core.ParseGroupID(g)
				if err != nil {
					return fmt.Errorf("%w: %v", core.ErrInvalidGroupID, err)
				}
				groupIDs = append(groupIDs, id)
			}
			paramCfg, err := parameterFlags(params, directions)
			if err != nil {
				return err
			}
			return runProfile(cmd.Context(), cfg, args[0], app.AnalysisRequest{
				Control:    core.GroupID(cfg.Analysis.Control),
				Groups:     groupIDs,
				Parameters: paramCfg,
				TwoTier:    twoTier,
				Selection:  cfg.Analysis.Selection,
				Sweep:      cfg.Analysis.Sweep,
				Tiers:      cfg.Analysis.Tiers,
			}, reportFmt, asJSON)
		},
	}

	cmd.Flags().IntVar(&control, "control", 0, "Control group code")
	cmd.Flags().StringSliceVar(&groups, "groups", nil, "Groups to analyse (default: all)")
	cmd.Flags().StringSliceVar(&params, "params", nil, "Parameters to select (default: stored preferences)")
	cmd.Flags().StringSliceVar(&directions, "direction", nil, "Per-parameter direction, e.g. distance=above")
	cmd.Flags().BoolVar(&autoSelect, "auto-select", false, "Add parameters that differ from control in mean or spread")
	cmd.Flags().BoolVar(&twoTier, "tiers", false, "Also run the two-tier (high/medium) classification")
	cmd.Flags().Float64Var(&high, "high", 0, "High threshold (default: operating point threshold)")
	cmd.Flags().Float64Var(&medium, "medium", 0, "Medium threshold (default: 0.7 x high)")
	cmd.Flags().Float64Var(&mediumCut, "medium-cut", 0, "Corrected score cut for medium (default: derived from control)")
	cmd.Flags().Float64Var(&highCut, "high-cut", 0, "Corrected score cut for high (default: derived from scores)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for result tables")
	cmd.Flags().StringVar(&format, "format", "", "Result table format: csv or xlsx")
	cmd.Flags().StringVar(&reportFmt, "report", "html", "Run report format: html, md or none")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")

	return cmd
}

func runProfile(ctx context.Context, cfg *config.Config, dataFile string, req app.AnalysisRequest, reportFmt string, asJSON bool) error {
	runs, prefs, closeStores, err := stores(ctx, cfg, dataFile)
	if err != nil {
		return err
	}
	defer closeStores()

	dataset := excel.DatasetName(dataFile)
	writer, err := newWriter(cfg, dataset)
	if err != nil {
		return err
	}

	req.Dataset = dataset
	req.Reader = excel.NewDataReader(excel.DefaultExcelConfig(dataFile))
	req.Writer = writer

	service := app.NewProfilingService(runs, prefs)
	result, runErr := service.Analyze(ctx, req)
	if closeErr := writer.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}
	if result == nil {
		return runErr
	}

	if reportFmt != "none" {
		ext := map[string]string{"html": ".html", "md": ".md"}[reportFmt]
		if ext == "" {
			return fmt.Errorf("unsupported report format: %s", reportFmt)
		}
		path := filepath.Join(cfg.Output.Dir, dataset+"_report"+ext)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create report: %w", err)
		}
		defer f.Close()
		if err := report.Write(f, result.Summary(), reportFmt); err != nil {
			return err
		}
	}

	if asJSON {
		if err := printJSON(result); err != nil {
			return err
		}
		return runErr
	}

	fmt.Printf("Run %s on %s (%d parameters)\n", result.RunID, dataset, len(result.Selection.Parameters))
	if best := result.Sweep.Best; best.Found {
		fmt.Printf("Operating point: threshold %.2f, at least %d parameters, max difference %.1f%%\n",
			best.Threshold, best.K, best.MaxDiff)
		for _, g := range report.Outcomes(result.Subjects) {
			fmt.Printf("  %-10s %3d/%-3d affected (%.1f%%)\n", g.Group.Label(), g.Affected, g.Subjects, g.Percent())
		}
	}
	if result.TwoTier != nil {
		fmt.Printf("Two-tier cuts: medium > %.0f, high > %.0f\n", result.TwoTier.MediumCut, result.TwoTier.HighCut)
		for _, t := range result.TwoTier.Summary {
			fmt.Printf("  %-10s high %.1f%%, medium %.1f%%, not affected %.1f%%\n", t.Group.Label(), t.High, t.Medium, t.NotAffected)
		}
	}
	fmt.Printf("Results written to %s\n", cfg.Output.Dir)
	return runErr
}

func newPairedCmd(opts *rootOptions) *cobra.Command {
	var (
		baseline   int
		separator  string
		params     []string
		directions []string
		outputDir  string
		format     string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "paired <data-file>",
		Short: "Flag pre/post differences outside a band around the mean difference",
		Long: `Read a table with two rows per subject (baseline, then follow-up), compute
per-subject differences and sweep band multipliers from 1.0 to 2.0 SD.
Parameters are grouped into tasks by the prefix before the separator.

Example: phenoprofile paired longitudinal.csv --baseline 0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(opts)
			if err != nil {
				return err
			}
			pairedCfg := cfg.Analysis.Paired
			if cmd.Flags().Changed("baseline") {
				g := core.GroupID(baseline)
				pairedCfg.Baseline = &g
			}
			if separator != "" {
				pairedCfg.Separator = separator
			}
			if outputDir != "" {
				cfg.Output.Dir = outputDir
			}
			if format != "" {
				cfg.Output.Format = format
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			paramCfg, err := parameterFlags(params, directions)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			_, prefs, closeStores, err := stores(ctx, cfg, args[0])
			if err != nil {
				return err
			}
			defer closeStores()

			dataset := excel.DatasetName(args[0])
			writer, err := newWriter(cfg, dataset)
			if err != nil {
				return err
			}
			analysis, err := app.NewPairedService(prefs).Analyze(ctx, app.PairedRequest{
				Dataset:    dataset,
				Reader:     excel.NewDataReader(excel.DefaultExcelConfig(args[0])),
				Parameters: paramCfg,
				Config:     pairedCfg,
				Writer:     writer,
			})
			if closeErr := writer.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(analysis)
			}
			fmt.Printf("%s: %d pairs, %d tasks\n", dataset, analysis.Pairs, len(analysis.Result.Tasks))
			for _, level := range analysis.Result.Levels {
				fmt.Printf("  band %.1f SD:", level.Multiplier)
				for _, cp := range level.PercentByCount {
					fmt.Printf(" >=%d %.1f%%", cp.K, cp.Percent)
				}
				fmt.Println()
			}
			fmt.Printf("Results written to %s\n", cfg.Output.Dir)
			return nil
		},
	}

	cmd.Flags().IntVar(&baseline, "baseline", 0, "Group code of the baseline measurement (default: group of the first row)")
	cmd.Flags().StringVar(&separator, "separator", "", "Task prefix separator (default \"_\")")
	cmd.Flags().StringSliceVar(&params, "params", nil, "Parameters to include (default: all)")
	cmd.Flags().StringSliceVar(&directions, "direction", nil, "Per-parameter direction, e.g. distance=above")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for result tables")
	cmd.Flags().StringVar(&format, "format", "", "Result table format: csv or xlsx")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")

	return cmd
}

func newPreferencesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preferences",
		Short: "Manage per-dataset direction preferences",
	}

	initCmd := &cobra.Command{
		Use:   "init <data-file>",
		Short: "Store a preferences entry with every parameter selected and direction both",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			_, prefs, closeStores, err := stores(ctx, cfg, args[0])
			if err != nil {
				return err
			}
			defer closeStores()

			dataset := excel.DatasetName(args[0])
			service := app.NewProfilingService(nil, prefs)
			params, err := service.InitPreferences(ctx, dataset, excel.NewDataReader(excel.DefaultExcelConfig(args[0])))
			if err != nil {
				return err
			}
			if fp, ok := prefs.(*excel.PreferencesFile); ok {
				fmt.Printf("Wrote %s (%d parameters)\n", fp.Path(dataset), len(params))
				return nil
			}
			fmt.Printf("Stored preferences for %s (%d parameters)\n", dataset, len(params))
			return nil
		},
	}

	cmd.AddCommand(initCmd)
	return cmd
}
