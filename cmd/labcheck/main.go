package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/celerix-dev/labcheck/internal/asc"
	"github.com/celerix-dev/labcheck/internal/config"
	"github.com/celerix-dev/labcheck/internal/engine"
	"github.com/celerix-dev/labcheck/internal/report"
	"github.com/celerix-dev/labcheck/pkg/schema"
	"github.com/celerix-dev/labcheck/pkg/sdk"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
)

func loadConf(c *cli.Context) (*config.Conf, error) {
	conf, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(conf); err != nil {
		return nil, err
	}
	if conf.Logging.Level == "" {
		conf.Logging.Level = "warn"
	}
	if _, err := config.SetupLogging(conf.Logging); err != nil {
		return nil, err
	}
	if err := config.ValidateAndDefaults(conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// traceInputs expands directories to the .asc files they contain.
func traceInputs(args []string) ([]asc.Input, error) {
	var inputs []asc.Input
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		paths := []string{arg}
		if st.IsDir() {
			if paths, err = filepath.Glob(filepath.Join(arg, "*.asc")); err != nil {
				return nil, err
			}
		}
		for _, p := range paths {
			inputs = append(inputs, asc.Input{
				Name: p,
				Open: func() (io.ReadCloser, error) { return os.Open(p) },
			})
		}
	}
	return inputs, nil
}

func runAnalyze(c *cli.Context) error {
	conf, err := loadConf(c)
	if err != nil {
		return err
	}
	if c.NArg() == 0 {
		return cli.Exit("no trace files given", 2)
	}
	inputs, err := traceInputs(c.Args().Slice())
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if len(inputs) == 0 {
		return cli.Exit("no .asc files found", 2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := conf.TraceOptions()
	if c.IsSet("workers") {
		opts.Workers = c.Int("workers")
	}
	bar := progressbar.Default(int64(len(inputs)), "analyzing traces")
	opts.Progress = func(asc.Result) { bar.Add(1) }

	results := asc.AnalyzeAll(ctx, inputs, opts)
	bar.Finish()
	fmt.Println()

	if err := report.WriteSummary(os.Stdout, results); err != nil {
		return err
	}

	reportDir := c.String("report-dir")
	if reportDir == "" {
		reportDir = conf.ReportDir
	}
	var failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		if reportDir == "" {
			continue
		}
		if _, err := report.RenderCharts(reportDir, res.Report); err != nil {
			log.Error().Err(err).Str("file", res.Name).Msg("failed to render charts")
		}
	}
	if reportDir != "" {
		fmt.Printf("\ncharts written to %s\n", reportDir)
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed", failed, len(results)), 1)
	}
	return nil
}

func printRecords(w io.Writer, records []schema.TrainingRecord) error {
	warn := color.New(color.FgYellow, color.Bold)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDEPARTMENT\tSCORE\tEVALUATED\tVALID DAYS\tSTATUS")
	for _, r := range records {
		status := string(r.Status)
		if r.Status == schema.StatusWarning {
			status = warn.Sprint(status)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\n",
			r.Subject, r.Department, r.LastScore,
			r.LastEvaluatedAt.Format(engine.TimeLayout), r.RemainingDays, status)
	}
	return tw.Flush()
}

func listAction(warningsOnly bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		conf, err := loadConf(c)
		if err != nil {
			return err
		}
		svc, closeFn, err := sdk.New(conf.Store)
		if err != nil {
			return err
		}
		defer closeFn()

		var records []schema.TrainingRecord
		if warningsOnly {
			records, err = svc.Warnings()
		} else {
			records, err = svc.Records()
		}
		if err != nil {
			return err
		}
		if c.Bool("json") {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		return printRecords(os.Stdout, records)
	}
}

// parseStoreRef reads "type:path", e.g. "sqlite:data/records.db".
func parseStoreRef(ref string) (engine.Conf, error) {
	typ, path, ok := strings.Cut(ref, ":")
	if !ok || typ == "" || path == "" {
		return engine.Conf{}, fmt.Errorf("invalid store %q, expected type:path", ref)
	}
	return engine.Conf{Type: typ, Path: path}, nil
}

func runMigrate(c *cli.Context) error {
	if _, err := loadConf(c); err != nil {
		return err
	}
	srcConf, err := parseStoreRef(c.String("from"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	dstConf, err := parseStoreRef(c.String("to"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	src, err := engine.Open(srcConf)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := engine.Open(dstConf)
	if err != nil {
		return err
	}
	defer dst.Close()

	if err := engine.Migrate(src, dst); err != nil {
		return err
	}
	color.Green("migrated %s -> %s", c.String("from"), c.String("to"))
	return nil
}

func main() {
	app := &cli.App{
		Name:  "labcheck",
		Usage: "analyze crash-record traces and inspect HSE training records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the JSON configuration",
				EnvVars: []string{"LABCHECK_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Usage:     "analyze .asc trace files or directories",
				ArgsUsage: "FILE|DIR...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "report-dir", Usage: "write per-field charts here"},
					&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "files analyzed at once"},
				},
				Action: runAnalyze,
			},
			{
				Name:   "records",
				Usage:  "list training records",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "print JSON instead of a table"}},
				Action: listAction(false),
			},
			{
				Name:   "warnings",
				Usage:  "list records in warning state",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "print JSON instead of a table"}},
				Action: listAction(true),
			},
			{
				Name:  "migrate",
				Usage: "copy training records between stores",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Required: true, Usage: "source store as type:path"},
					&cli.StringFlag{Name: "to", Required: true, Usage: "destination store as type:path"},
				},
				Action: runMigrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
