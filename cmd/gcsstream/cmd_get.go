package main

import (
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2/google"

	"github.com/rizk-nci-admin/prio-server/gcstransport"
	"github.com/rizk-nci-admin/prio-server/internal/telemetry"
)

var getCmd = &cobra.Command{
	Use:   "get <bucket> <key>",
	Short: "fetch a GCS object and write it to stdout",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var getArgs struct {
	prefix string
}

func init() {
	getCmd.Flags().StringVar(&getArgs.prefix, "prefix", "", "key prefix")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	bucket, key := args[0], args[1]
	ctx := cmd.Context()

	creds, err := google.FindDefaultCredentials(ctx, storage.ScopeFullControl)
	if err != nil {
		return fmt.Errorf("load default credentials: %w", err)
	}

	log := telemetry.New(telemetry.Options{Pretty: true})
	transport := gcstransport.NewTransport(bucket, getArgs.prefix, creds.TokenSource, http.DefaultClient, log)

	body, err := transport.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("fetch object: %w", err)
	}
	defer body.Close()

	if _, err := io.Copy(cmd.OutOrStdout(), body); err != nil {
		return fmt.Errorf("write object body: %w", err)
	}
	return nil
}
