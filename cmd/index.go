package cmd

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skigaudi/skibot/internal/app"
	"github.com/skigaudi/skibot/internal/config"
	"github.com/skigaudi/skibot/internal/extract"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the knowledge document index",
}

var indexAddCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Ingest local files into the knowledge index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndexAdd(cmd.Context(), args)
	},
}

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed knowledge documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIndexList(cmd.Context())
	},
}

var indexDeleteCmd = &cobra.Command{
	Use:   "delete <title>",
	Short: "Delete a knowledge document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndexDelete(cmd.Context(), args[0])
	},
}

func init() {
	indexCmd.AddCommand(indexAddCmd, indexListCmd, indexDeleteCmd)
	rootCmd.AddCommand(indexCmd)
}

// setupApp loads configuration and initializes the application for a
// one-shot command.
func setupApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	a, err := app.Setup(ctx, cfg, newLogger())
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}

func runIndexAdd(ctx context.Context, paths []string) error {
	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range paths {
		name := filepath.Base(path)
		contentType := mime.TypeByExtension(filepath.Ext(path))
		if !extract.Accepts(name, contentType) {
			return fmt.Errorf("unsupported document type: %s", path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		chunks, err := a.Indexer.IngestFile(ctx, data, name, contentType)
		if err != nil {
			return fmt.Errorf("indexing %s: %w", path, err)
		}
		fmt.Printf("indexed %s (%d chunks)\n", name, chunks)
	}
	return nil
}

func runIndexList(ctx context.Context) error {
	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	titles, err := a.Indexer.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	if len(titles) == 0 {
		fmt.Println("no knowledge documents indexed")
		return nil
	}
	for _, t := range titles {
		fmt.Printf("%s\t%d chunks\n", t.Title, t.Chunks)
	}
	return nil
}

func runIndexDelete(ctx context.Context, title string) error {
	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Indexer.DeleteFile(ctx, title)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", title, err)
	}
	if n == 0 {
		fmt.Printf("no document named %q\n", title)
		return nil
	}
	fmt.Printf("deleted %s (%d chunks)\n", title, n)
	return nil
}
