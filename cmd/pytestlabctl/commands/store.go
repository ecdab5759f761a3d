package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	pterrors "pytestlab/internal/errors"
	"pytestlab/internal/store"
)

// storeFlags names the backend selector + per-backend connection flags
// every `store` subcommand shares, the same flag-bag shape bench.Options
// uses for the transport-backend equivalent.
type storeFlags struct {
	backend string

	redisAddr, redisPassword, redisPrefix string
	redisDB                               int

	s3Bucket, s3Prefix, s3AccessKey, s3SecretKey string

	influxURL, influxToken, influxOrg, influxBucket string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.backend, "backend", "memory", "store backend: memory, redis, s3, influx")

	cmd.PersistentFlags().StringVar(&f.redisAddr, "redis-addr", "localhost:6379", "redis backend: host:port")
	cmd.PersistentFlags().StringVar(&f.redisPassword, "redis-password", "", "redis backend: password")
	cmd.PersistentFlags().IntVar(&f.redisDB, "redis-db", 0, "redis backend: db index")
	cmd.PersistentFlags().StringVar(&f.redisPrefix, "redis-prefix", "pytestlab", "redis backend: key prefix")

	cmd.PersistentFlags().StringVar(&f.s3Bucket, "s3-bucket", "", "s3 backend: bucket name")
	cmd.PersistentFlags().StringVar(&f.s3Prefix, "s3-prefix", "pytestlab", "s3 backend: key prefix")
	cmd.PersistentFlags().StringVar(&f.s3AccessKey, "s3-access-key", "", "s3 backend: static access key (empty uses the default credential chain)")
	cmd.PersistentFlags().StringVar(&f.s3SecretKey, "s3-secret-key", "", "s3 backend: static secret key")

	cmd.PersistentFlags().StringVar(&f.influxURL, "influx-url", "", "influx backend: server URL")
	cmd.PersistentFlags().StringVar(&f.influxToken, "influx-token", "", "influx backend: auth token")
	cmd.PersistentFlags().StringVar(&f.influxOrg, "influx-org", "", "influx backend: organization")
	cmd.PersistentFlags().StringVar(&f.influxBucket, "influx-bucket", "pytestlab", "influx backend: bucket")
}

func (f *storeFlags) open(ctx context.Context) (store.Store, error) {
	switch f.backend {
	case "memory", "":
		return store.NewMemory(), nil
	case "redis":
		return store.NewRedis(f.redisAddr, f.redisPassword, f.redisDB, f.redisPrefix, globals.Log)
	case "s3":
		if f.s3Bucket == "" {
			return nil, pterrors.NewConfigError("store", fmt.Errorf("--s3-bucket is required for the s3 backend"))
		}
		return store.NewS3(ctx, f.s3Bucket, f.s3Prefix, f.s3AccessKey, f.s3SecretKey, globals.Log)
	case "influx":
		if f.influxURL == "" || f.influxToken == "" || f.influxOrg == "" {
			return nil, pterrors.NewConfigError("store", fmt.Errorf("--influx-url, --influx-token and --influx-org are required for the influx backend"))
		}
		return store.NewInflux(f.influxURL, f.influxToken, f.influxOrg, f.influxBucket, globals.Log), nil
	default:
		return nil, pterrors.NewConfigError("store", fmt.Errorf("unknown backend %q", f.backend))
	}
}

func newStoreCommand() *cobra.Command {
	flags := &storeFlags{}
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Put, get, and search measurement results in a backing store",
	}
	flags.register(cmd)
	cmd.AddCommand(newStorePutCommand(flags))
	cmd.AddCommand(newStoreGetCommand(flags))
	cmd.AddCommand(newStoreSearchCommand(flags))
	return cmd
}

func newStorePutCommand(flags *storeFlags) *cobra.Command {
	var id, title, description string
	cmd := &cobra.Command{
		Use:   "put <blob-file>",
		Short: "Store a result blob, optionally under a caller-chosen id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return pterrors.NewConfigError(fmt.Sprintf("read blob %s", args[0]), err)
			}
			s, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			gotID, err := s.Put(cmd.Context(), id, title, description, blob)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), gotID)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "id to store under (empty assigns one)")
	cmd.Flags().StringVar(&title, "title", "", "searchable title")
	cmd.Flags().StringVar(&description, "description", "", "searchable description")
	return cmd
}

func newStoreGetCommand(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch a stored result blob by id, writing it to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			blob, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(blob)
			return err
		},
	}
}

func newStoreSearchCommand(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Case-insensitive substring search over stored titles and descriptions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			hits, err := s.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, h := range hits {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", h.ID, h.Title, h.Description)
			}
			return nil
		},
	}
}
