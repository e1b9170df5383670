package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/merchantscaravan/caravan-server/internal/config"
	"github.com/merchantscaravan/caravan-server/internal/sim"
)

// RootOptions holds the flags of the simulator.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"
	Sim        sim.Config
}

var validFormats = []string{"text", "json"}

// NewRootCommand creates the caravan-sim command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Sim: sim.DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "caravan-sim",
		Short: "Play randomized Merchant's Caravan games headlessly",
		Long: `caravan-sim drives random games through the room layer and checks
that every card stays accounted for after each command.

Example:
  caravan-sim --games 50 --players 4 --seed 7
  caravan-sim --config config.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.ConfigPath, "config", "", "server config file supplying the game options")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log every command")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.IntVar(&opts.Sim.Games, "games", opts.Sim.Games, "number of games to play")
	flags.IntVar(&opts.Sim.Players, "players", opts.Sim.Players, "players per game")
	flags.IntVar(&opts.Sim.MaxCommands, "max-commands", opts.Sim.MaxCommands, "command budget per game")
	flags.Int64Var(&opts.Sim.Seed, "seed", opts.Sim.Seed, "random seed")
	flags.Float64Var(&opts.Sim.ChaosRate, "chaos", opts.Sim.ChaosRate, "probability of a random command per step")

	return cmd
}

func run(cmd *cobra.Command, opts *RootOptions) error {
	level := zapcore.WarnLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}
	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if opts.ConfigPath != "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return err
		}
		if opts.Sim.Options, err = cfg.GameOptions(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := sim.Run(ctx, opts.Sim, logger)
	if err != nil {
		return err
	}
	return writeSummary(cmd.OutOrStdout(), opts.Format, summary)
}

func writeSummary(w io.Writer, format string, s sim.Summary) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	fmt.Fprintf(w, "games:        %d\n", s.Games)
	fmt.Fprintf(w, "finished:     %d\n", s.Finished)
	fmt.Fprintf(w, "rounds:       %d\n", s.Rounds)
	fmt.Fprintf(w, "commands:     %d (%d rejected)\n", s.Commands, s.Rejected)
	fmt.Fprintf(w, "sub-phases:   %d\n", s.SubPhases)
	fmt.Fprintf(w, "eliminations: %d\n", s.Eliminations)
	for cat, n := range s.Wins {
		fmt.Fprintf(w, "wins %-13s %d\n", cat+":", n)
	}
	return nil
}
