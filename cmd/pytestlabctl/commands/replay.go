package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pytestlab/internal/bench"
	"pytestlab/internal/instrument"
	pterrors "pytestlab/internal/errors"
	"pytestlab/internal/transport"
)

func newReplayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Record or replay a script of SCPI calls against a bench",
	}
	cmd.AddCommand(newReplayRecordCommand())
	cmd.AddCommand(newReplayRunCommand())
	return cmd
}

func runScript(ctx context.Context, b *bench.Bench, script *Script) error {
	for i, step := range script.Steps {
		drv, ok := b.Instrument(step.Alias)
		if !ok {
			return pterrors.NewConfigError("script", fmt.Errorf("step %d: unknown alias %q", i, step.Alias))
		}
		raw, ok := drv.(instrument.RawDriver)
		if !ok {
			return pterrors.NewConfigError("script", fmt.Errorf("step %d: alias %q does not support raw SCPI", i, step.Alias))
		}
		switch step.Op {
		case "write":
			if err := raw.Write(ctx, step.Command); err != nil {
				return fmt.Errorf("step %d (%s write %q): %w", i, step.Alias, step.Command, err)
			}
		case "query":
			if _, err := raw.Query(ctx, step.Command); err != nil {
				return fmt.Errorf("step %d (%s query %q): %w", i, step.Alias, step.Command, err)
			}
		}
	}
	return nil
}

func newReplayRecordCommand() *cobra.Command {
	var benchPath, output string
	cmd := &cobra.Command{
		Use:   "record <script.yaml>",
		Short: "Run a script against a bench, recording every call to a session document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := loadScript(args[0])
			if err != nil {
				return err
			}
			b, err := openBenchForCLI(cmd.Context(), benchPath, bench.Options{RecordTo: output})
			if err != nil {
				return err
			}
			runErr := runScript(cmd.Context(), b, script)
			closeErr := b.Close()
			if runErr != nil {
				return runErr
			}
			return closeErr
		},
	}
	cmd.Flags().StringVar(&benchPath, "bench", "", "bench descriptor to record against")
	cmd.Flags().StringVar(&output, "output", "", "session document path to write")
	cmd.MarkFlagRequired("bench")
	cmd.MarkFlagRequired("output")
	return cmd
}

func newReplayRunCommand() *cobra.Command {
	var sessionPath string
	var strictLeftover bool
	cmd := &cobra.Command{
		Use:   "run <script.yaml>",
		Short: "Replay a script against a recorded session document, failing on the first divergence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := loadScript(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(sessionPath)
			if err != nil {
				return pterrors.NewConfigError(fmt.Sprintf("read session document %s", sessionPath), err)
			}
			var doc transport.SessionDocument
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return pterrors.NewConfigError("parse session document", err)
			}

			desc := descriptorFromSessionDocument(doc)
			b, err := bench.Open(cmd.Context(), desc, applyConfigDefaults(bench.Options{
				CatalogRoot:          globals.CatalogRoot,
				ReplayFrom:           doc,
				StrictReplayLeftover: strictLeftover,
				Log:                  globals.Log,
			}))
			if err != nil {
				return err
			}

			runErr := runScript(cmd.Context(), b, script)
			leftoverErr := reportReplayLeftover(b, desc)
			closeErr := b.Close()

			if runErr != nil {
				return runErr
			}
			if leftoverErr != nil {
				return leftoverErr
			}
			return closeErr
		},
	}
	cmd.Flags().StringVar(&sessionPath, "session", "", "recorded session document to replay against")
	cmd.Flags().BoolVar(&strictLeftover, "strict-leftover", false, "fail if the session document has unconsumed trailing entries")
	cmd.MarkFlagRequired("session")
	return cmd
}

// descriptorFromSessionDocument synthesizes a minimal bench descriptor
// from a session document alone, so `replay run` needs nothing but the
// document and the script: every alias becomes a replay-backend
// instrument against the profile the document itself names.
func descriptorFromSessionDocument(doc transport.SessionDocument) *bench.Descriptor {
	desc := &bench.Descriptor{
		BenchName:   "replay",
		Instruments: make(map[string]bench.InstrumentEntry, len(doc)),
	}
	for alias, aliasLog := range doc {
		desc.Instruments[alias] = bench.InstrumentEntry{Profile: aliasLog.Profile}
	}
	return desc
}

func reportReplayLeftover(b *bench.Bench, desc *bench.Descriptor) error {
	for alias := range desc.Instruments {
		drv, ok := b.Instrument(alias)
		if !ok {
			continue
		}
		raw, ok := drv.(instrument.RawDriver)
		if !ok {
			continue
		}
		rep, ok := raw.RawTransport().(*transport.Replayer)
		if !ok {
			continue
		}
		if err := rep.ReportLeftover(); err != nil {
			return err
		}
	}
	return nil
}
