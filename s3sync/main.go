// s3sync uploads and downloads project datasets against the exo-nasa S3
// bucket.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/exoplanet-explorer/backend/shared/config"
	"github.com/exoplanet-explorer/backend/shared/s3store"
)

var (
	flagRegion string
	flagBucket string
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "s3sync",
		Short:        "Sync datasets with the project S3 bucket",
		SilenceUsage: true,
	}
	// Flag defaults come from the same env vars the deployment sets for the
	// rest of the project.
	root.PersistentFlags().StringVar(&flagRegion, "region",
		config.GetEnv("AWS_DEFAULT_REGION", "us-east-1"), "AWS region")
	root.PersistentFlags().StringVar(&flagBucket, "bucket",
		config.GetEnv("S3_BUCKET_NAME", s3store.DefaultBucket), "S3 bucket name")

	upload := &cobra.Command{
		Use:   "upload <file> [key]",
		Short: "Upload a local file (key defaults to the file's base name)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 2 {
				key = args[1]
			}
			return client.Upload(cmd.Context(), args[0], key)
		},
	}

	download := &cobra.Command{
		Use:   "download <key> <file>",
		Short: "Download an object to a local path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			return client.Download(cmd.Context(), args[0], args[1])
		},
	}

	savelog := &cobra.Command{
		Use:   "save-log <file> [prefix]",
		Short: "Archive a log file under a timestamped key",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			prefix := ""
			if len(args) == 2 {
				prefix = args[1]
			}
			key, err := client.SaveLog(cmd.Context(), string(data), prefix)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}

	root.AddCommand(upload, download, savelog)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newClient(cmd *cobra.Command) (*s3store.Client, error) {
	return s3store.New(cmd.Context(), flagRegion, flagBucket)
}
