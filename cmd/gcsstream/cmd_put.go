package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2/google"

	"github.com/rizk-nci-admin/prio-server/gcstransport"
	"github.com/rizk-nci-admin/prio-server/internal/telemetry"
)

var putCmd = &cobra.Command{
	Use:   "put <bucket> <key>",
	Short: "stream stdin into a GCS object via a resumable upload session",
	Args:  cobra.ExactArgs(2),
	RunE:  runPut,
}

var putArgs struct {
	prefix       string
	minChunkSize int
}

func init() {
	putCmd.Flags().StringVar(&putArgs.prefix, "prefix", "", "key prefix")
	putCmd.Flags().IntVar(&putArgs.minChunkSize, "min-chunk-size", gcstransport.DefaultMinChunkSize, "minimum chunk size in bytes")
	rootCmd.AddCommand(putCmd)
}

func runPut(cmd *cobra.Command, args []string) error {
	bucket, key := args[0], args[1]
	ctx := cmd.Context()

	creds, err := google.FindDefaultCredentials(ctx, storage.ScopeFullControl)
	if err != nil {
		return fmt.Errorf("load default credentials: %w", err)
	}

	log := telemetry.New(telemetry.Options{Pretty: true})
	transport := gcstransport.NewTransport(bucket, putArgs.prefix, creds.TokenSource, http.DefaultClient, log).
		WithMinChunkSize(putArgs.minChunkSize)

	uploader, err := transport.Put(ctx, key)
	if err != nil {
		return fmt.Errorf("open upload session: %w", err)
	}

	if _, err := io.Copy(uploader, os.Stdin); err != nil {
		_ = uploader.CancelUpload(ctx)
		return fmt.Errorf("stream upload: %w", err)
	}

	if err := uploader.CompleteUpload(ctx); err != nil {
		return fmt.Errorf("complete upload: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d bytes to gs://%s/%s\n", uploader.Position(), bucket, key)
	return nil
}
