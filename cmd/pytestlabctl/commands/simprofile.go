package commands

import (
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pytestlab/internal/bench"
	"pytestlab/internal/compliance"
	pterrors "pytestlab/internal/errors"
	"pytestlab/internal/instrument"
	"pytestlab/internal/profile"
	"pytestlab/internal/transport"
)

func newSimProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim-profile",
		Short: "Inspect and edit an instrument's simulation profile",
	}
	cmd.AddCommand(newSimProfileRecordCommand())
	cmd.AddCommand(newSimProfileResetCommand())
	cmd.AddCommand(newSimProfileEditCommand())
	cmd.AddCommand(newSimProfileDiffCommand())
	return cmd
}

// resolveProfilePath looks up alias's profile reference against the bench
// descriptor at benchPath, the same resolution Bench.buildInstrument does.
func resolveProfilePath(benchPath, alias string) (string, error) {
	desc, err := bench.LoadDescriptor(benchPath)
	if err != nil {
		return "", err
	}
	entry, ok := desc.Instruments[alias]
	if !ok {
		return "", pterrors.NewConfigError("sim-profile", fmt.Errorf("bench descriptor has no instrument %q", alias))
	}
	return profile.ResolvePath(entry.Profile, globals.CatalogRoot)
}

func newSimProfileRecordCommand() *cobra.Command {
	var benchPath, scriptPath, output string
	cmd := &cobra.Command{
		Use:   "record <alias>",
		Short: "Run an instrument's simulation and snapshot its resulting state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alias := args[0]
			b, err := openBenchForCLI(cmd.Context(), benchPath, bench.Options{ForceSimulate: true})
			if err != nil {
				return err
			}
			defer b.Close()

			if scriptPath != "" {
				script, err := loadScript(scriptPath)
				if err != nil {
					return err
				}
				if err := runScript(cmd.Context(), b, script); err != nil {
					return err
				}
			}

			sim, err := simulatorFor(b, alias)
			if err != nil {
				return err
			}
			return writeSnapshot(output, sim.State())
		},
	}
	cmd.Flags().StringVar(&benchPath, "bench", "", "bench descriptor the alias belongs to")
	cmd.Flags().StringVar(&scriptPath, "script", "", "optional script to run before snapshotting state")
	cmd.Flags().StringVar(&output, "output", "", "snapshot path to write")
	cmd.MarkFlagRequired("bench")
	cmd.MarkFlagRequired("output")
	return cmd
}

func newSimProfileResetCommand() *cobra.Command {
	var benchPath, output string
	cmd := &cobra.Command{
		Use:   "reset <alias>",
		Short: "Write the profile-declared baseline simulation state to a snapshot path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveProfilePath(benchPath, args[0])
			if err != nil {
				return err
			}
			spec, err := profile.Load(path)
			if err != nil {
				return err
			}
			return writeSnapshot(output, spec.Simulation.State)
		},
	}
	cmd.Flags().StringVar(&benchPath, "bench", "", "bench descriptor the alias belongs to")
	cmd.Flags().StringVar(&output, "output", "", "snapshot path to write")
	cmd.MarkFlagRequired("bench")
	cmd.MarkFlagRequired("output")
	return cmd
}

func newSimProfileEditCommand() *cobra.Command {
	var benchPath string
	cmd := &cobra.Command{
		Use:   "edit <alias>",
		Short: "Open an instrument's profile in $EDITOR and re-validate it on exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveProfilePath(benchPath, args[0])
			if err != nil {
				return err
			}

			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = "vi"
			}
			editCmd := exec.CommandContext(cmd.Context(), editor, path)
			editCmd.Stdin, editCmd.Stdout, editCmd.Stderr = os.Stdin, os.Stdout, os.Stderr
			if err := editCmd.Run(); err != nil {
				return pterrors.NewConfigError(fmt.Sprintf("run editor %s", editor), err)
			}

			if _, err := profile.Load(path); err != nil {
				return fmt.Errorf("profile no longer validates after edit: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "profile still validates")
			return nil
		},
	}
	cmd.Flags().StringVar(&benchPath, "bench", "", "bench descriptor the alias belongs to")
	cmd.MarkFlagRequired("bench")
	return cmd
}

func newSimProfileDiffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <snapshot-a.yaml> <snapshot-b.yaml>",
		Short: "Print the canonicalized state keys that differ between two snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			b, err := readSnapshot(args[1])
			if err != nil {
				return err
			}
			printSnapshotDiff(cmd, a, b)
			return nil
		},
	}
}

func simulatorFor(b *bench.Bench, alias string) (*transport.Simulator, error) {
	drv, ok := b.Instrument(alias)
	if !ok {
		return nil, pterrors.NewConfigError("sim-profile", fmt.Errorf("no such alias %q", alias))
	}
	raw, ok := drv.(instrument.RawDriver)
	if !ok {
		return nil, pterrors.NewConfigError("sim-profile", fmt.Errorf("alias %q has no raw transport", alias))
	}
	sim, ok := raw.RawTransport().(*transport.Simulator)
	if !ok {
		return nil, pterrors.NewConfigError("sim-profile", fmt.Errorf("alias %q is not running the simulator backend", alias))
	}
	return sim, nil
}

func writeSnapshot(path string, state map[string]any) error {
	out, err := yaml.Marshal(state)
	if err != nil {
		return pterrors.NewConfigError("marshal snapshot", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return pterrors.NewConfigError(fmt.Sprintf("write snapshot %s", path), err)
	}
	return nil
}

func readSnapshot(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pterrors.NewConfigError(fmt.Sprintf("read snapshot %s", path), err)
	}
	var state map[string]any
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, pterrors.NewConfigError("parse snapshot", err)
	}
	return state, nil
}

func printSnapshotDiff(cmd *cobra.Command, a, b map[string]any) {
	keys := make(map[string]struct{})
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, k := range sorted {
		av, aok := a[k]
		bv, bok := b[k]
		if aok && bok && fmt.Sprintf("%v", av) == fmt.Sprintf("%v", bv) {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", k, formatSnapshotValue(aok, av), formatSnapshotValue(bok, bv))
	}
}

func formatSnapshotValue(present bool, v any) string {
	if !present {
		return "<absent>"
	}
	return fmt.Sprintf("%v", v)
}

// canonicalSnapshotHash exposes compliance.CanonicalizeSnapshot for
// deterministic ordering when a caller wants the raw canonical bytes
// rather than a key-by-key diff.
func canonicalSnapshotHash(state map[string]any) []byte {
	strs := make(map[string]string, len(state))
	for k, v := range state {
		strs[k] = fmt.Sprintf("%v", v)
	}
	return compliance.CanonicalizeSnapshot(strs)
}
