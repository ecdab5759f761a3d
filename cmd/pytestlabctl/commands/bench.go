package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pytestlab/internal/bench"
	"pytestlab/internal/profile"
)

func newBenchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Inspect and validate bench descriptors",
	}
	cmd.AddCommand(newBenchLsCommand())
	cmd.AddCommand(newBenchValidateCommand())
	cmd.AddCommand(newBenchIDCommand())
	cmd.AddCommand(newBenchSimCommand())
	return cmd
}

func newBenchLsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <bench.yaml>",
		Short: "List the aliases a bench descriptor declares",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := bench.LoadDescriptor(args[0])
			if err != nil {
				return err
			}
			for alias, entry := range desc.Instruments {
				backend := "visa"
				if entry.Backend != nil && entry.Backend.Type != "" {
					backend = string(entry.Backend.Type)
				} else if desc.BackendDefaults.Type != "" {
					backend = string(desc.BackendDefaults.Type)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tprofile=%s\tbackend=%s\n", alias, entry.Profile, backend)
			}
			return nil
		},
	}
}

func newBenchValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <bench.yaml>",
		Short: "Parse the descriptor and resolve every instrument's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := bench.LoadDescriptor(args[0])
			if err != nil {
				return err
			}
			for alias, entry := range desc.Instruments {
				path, err := profile.ResolvePath(entry.Profile, globals.CatalogRoot)
				if err != nil {
					return fmt.Errorf("alias %s: %w", alias, err)
				}
				if _, err := profile.Load(path); err != nil {
					return fmt.Errorf("alias %s: %w", alias, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d instrument(s) ok\n", desc.BenchName, len(desc.Instruments))
			return nil
		},
	}
}

func newBenchIDCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "id <bench.yaml>",
		Short: "Print the bench_name declared by a descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := bench.LoadDescriptor(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), desc.BenchName)
			return nil
		},
	}
}

func newBenchSimCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "sim <bench.yaml>",
		Short: "Emit a copy of the descriptor with every instrument forced to the sim backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := bench.LoadDescriptor(args[0])
			if err != nil {
				return err
			}
			desc.Simulate = true
			desc.BackendDefaults.Type = bench.BackendSim
			for alias, entry := range desc.Instruments {
				entry.Backend = nil
				entry.Address = ""
				entry.Simulate = nil
				desc.Instruments[alias] = entry
			}
			out, err := yaml.Marshal(desc)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return os.WriteFile(output, out, 0o644)
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "write to this path instead of stdout")
	return cmd
}

// openBenchForCLI is the shared Bench.Open call for subcommands that open
// live instruments from a bench descriptor path (replay record,
// sim-profile record). replay run builds its descriptor from the session
// document and calls Bench.Open itself.
func openBenchForCLI(ctx context.Context, descPath string, opts bench.Options) (*bench.Bench, error) {
	desc, err := bench.LoadDescriptor(descPath)
	if err != nil {
		return nil, err
	}
	opts.CatalogRoot = globals.CatalogRoot
	opts.Log = globals.Log
	opts = applyConfigDefaults(opts)
	return bench.Open(ctx, desc, opts)
}

// applyConfigDefaults folds the process-wide runtime config (PYTESTLAB_SIMULATE
// and friends, loaded once in root's PersistentPreRunE) into a bench.Options a
// subcommand is about to open with. Every field here only ever turns a
// safeguard on: a command that already asked for it explicitly keeps asking
// for it regardless of what the config file or environment says.
func applyConfigDefaults(opts bench.Options) bench.Options {
	if globals.Config == nil {
		return opts
	}
	opts.ForceSimulate = opts.ForceSimulate || globals.Config.ForceSimulate
	opts.StrictReplayLeftover = opts.StrictReplayLeftover || globals.Config.Transport.StrictReplay
	opts.StrictSimQuery = opts.StrictSimQuery || globals.Config.Transport.StrictSimQuery
	return opts
}
