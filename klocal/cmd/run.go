package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/klocal/annealing"
	"github.com/sarchlab/klocal/config"
	"github.com/sarchlab/klocal/datarecording"
	"github.com/sarchlab/klocal/monitoring"
	"github.com/sarchlab/klocal/polynomial"
)

var runCmd = &cobra.Command{
	Use:   "run <problem.json>",
	Short: "Anneal a problem file.",
	Long: "`run problem.json` anneals the polynomial in problem.json and " +
		"prints the best states found. Parameters come from .env files, " +
		"KLOCAL_* variables, and flags, in increasing priority.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envFiles, _ := cmd.Flags().GetStringSlice("env")

		c, err := config.Load(envFiles...)
		if err != nil {
			return err
		}

		if err := applyFlags(cmd, c); err != nil {
			return err
		}

		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			c.Print(cmd.ErrOrStderr())
		}

		rawFixed, _ := cmd.Flags().GetStringToInt("fix")
		fixed, err := parseFixed(rawFixed)
		if err != nil {
			return err
		}

		top, _ := cmd.Flags().GetInt("top")

		ctx, stop := signal.NotifyContext(cmd.Context(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		return anneal(ctx, c, args[0], fixed, top, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringSlice("env", nil, "Read parameters from these .env files")
	f.Uint64("seed", 0, "Seed of all random streams, 0 picks one")
	f.String("schedule", config.Geometric, "Schedule: geometric, linear or constant")
	f.Float64("beta-min", 0.1, "First inverse temperature")
	f.Float64("beta-max", 10, "Last inverse temperature")
	f.Int("points", 100, "Number of inverse temperatures")
	f.Int("sweeps", 10, "Sweeps per inverse temperature")
	f.Int("replicas", 1, "Number of independent replicas")
	f.Int("workers", 0, "Replicas running at once, 0 means one per CPU")
	f.Int("cadence", 10, "Updater calls between k-local move attempts")
	f.StringToInt("fix", nil, "Clamp variables, as index=value with binary values")
	f.Bool("record", false, "Record the run into SQLite")
	f.String("db", "", "Database path, without the .sqlite3 extension")
	f.Int("record-interval", 1, "Record every n-th sweep")
	f.Bool("monitor", false, "Serve the monitor while annealing")
	f.Int("monitor-port", 0, "Port of the monitor, 0 picks one")
	f.Bool("open-browser", false, "Open the monitor in a browser")
	f.Int("top", 1, "Number of results to print")
	f.BoolP("verbose", "v", false, "Print the parameters before annealing")
}

// applyFlags overrides the config with the flags the user set.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := map[string]string{
		"seed":            "KLOCAL_SEED",
		"schedule":        "KLOCAL_SCHEDULE",
		"beta-min":        "KLOCAL_BETA_MIN",
		"beta-max":        "KLOCAL_BETA_MAX",
		"points":          "KLOCAL_POINTS",
		"sweeps":          "KLOCAL_SWEEPS",
		"replicas":        "KLOCAL_REPLICAS",
		"workers":         "KLOCAL_WORKERS",
		"cadence":         "KLOCAL_CADENCE",
		"record":          "KLOCAL_RECORD",
		"db":              "KLOCAL_DB",
		"record-interval": "KLOCAL_RECORD_INTERVAL",
		"monitor":         "KLOCAL_MONITOR",
		"monitor-port":    "KLOCAL_MONITOR_PORT",
		"open-browser":    "KLOCAL_OPEN_BROWSER",
	}

	for name, key := range flags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}

		if err := c.Set(key, flag.Value.String()); err != nil {
			return err
		}
	}

	if workers := cmd.Flags().Lookup("workers"); workers.Changed &&
		workers.Value.String() == "0" {
		c.Workers = config.New().Workers
	}

	return nil
}

// anneal runs the problem in path under c and prints the best top results
// to out.
func anneal(
	ctx context.Context,
	c *config.Config,
	path string,
	fixed map[int]int,
	top int,
	out io.Writer,
) error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
		fmt.Fprintf(os.Stderr, "Using seed %d\n", c.Seed)
	}

	p, err := polynomial.LoadFile(path)
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	pr, err := newProblem(name, p.Normalize(), c.Cadence, fixed)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	a := annealing.MakeBuilder().
		WithSchedule(c.Schedule()).
		WithReplicas(c.Replicas).
		WithWorkers(c.Workers).
		WithSeed(c.Seed).
		Build()

	var (
		recorder      datarecording.DataRecorder
		execRecorder  *datarecording.ExecRecorder
		sweepRecorder *datarecording.SweepRecorder
	)

	if c.Record {
		recorder = datarecording.New(c.DBPath)
		defer recorder.Close()

		execRecorder = datarecording.NewExecRecorder(recorder)
		execRecorder.Start()
		execRecorder.Set("Problem", path)
		execRecorder.Set("Model", pr.kind)
		execRecorder.Set("Seed", strconv.FormatUint(c.Seed, 10))
		execRecorder.Set("Schedule", c.ScheduleKind)

		sweepRecorder = datarecording.NewSweepRecorder(recorder, c.RecordInterval)
		a.AcceptHook(sweepRecorder)
	}

	if c.Monitor {
		m := monitoring.NewMonitor()
		if c.MonitorPort != 0 {
			m.WithPortNumber(c.MonitorPort)
		}

		if c.OpenBrowser {
			m.WithBrowser()
		}

		bar := m.RegisterAnnealer(a)
		defer m.CompleteProgressBar(bar)

		m.StartServer()
	}

	results, runErr := a.Run(ctx, pr.factory)

	if c.Record {
		sweepRecorder.RecordResults(results)
		execRecorder.End()
	}

	printResults(out, pr, results, top)

	if runErr != nil {
		return fmt.Errorf("annealing stopped after %d of %d replicas: %w",
			len(results), c.Replicas, runErr)
	}

	return nil
}

func printResults(
	out io.Writer,
	pr *problem,
	results []annealing.Result,
	top int,
) {
	if top <= 0 || top > len(results) {
		top = len(results)
	}

	for _, r := range results[:top] {
		fmt.Fprintf(out, "replica %d: energy %g\n", r.Replica, r.BestEnergy)
		fmt.Fprintf(out, "  state %s\n", pr.format(r.BestState))
	}
}
