package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"docqa/internal/service"
)

var (
	publishNamespace string
	publishDocID     string
	publishUserID    string
	publishReplace   bool
)

var publishCmd = &cobra.Command{
	Use:   "publish <file>",
	Short: "Publish a document into a namespace of the vector index",
	Long: `Extracts the file, chunks it and upserts one embedding per chunk.
Publishing the same doc id again overwrites its entries; use --replace when
the new version may have fewer chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVarP(&publishNamespace, "namespace", "n", "", "target namespace (required)")
	publishCmd.Flags().StringVar(&publishDocID, "doc-id", "", "document id (default: file name without extension)")
	publishCmd.Flags().StringVar(&publishUserID, "user-id", "", "owner recorded in metadata (default: namespace)")
	publishCmd.Flags().BoolVar(&publishReplace, "replace", false, "delete existing entries of the document first")
	_ = publishCmd.MarkFlagRequired("namespace")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireDurableStore(cfg.VectorStore); err != nil {
		return err
	}
	a, err := buildApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	docID := publishDocID
	if docID == "" {
		docID = strings.TrimSuffix(name, filepath.Ext(name))
	}

	res, err := a.svc.Extract(cmd.Context(), name, data, func(page, total int) {
		a.log.Debug("extracted page", "page", page, "total", total)
	})
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}
	if res.Truncated {
		cmd.PrintErrf("warning: read %d of %d pages before the extraction timeout\n", res.PagesRead, res.NumPages)
	}
	n, err := a.svc.PublishDocument(cmd.Context(), service.PublishRequest{
		Namespace: publishNamespace,
		DocID:     docID,
		DocName:   name,
		Text:      res.Text,
		NumPages:  res.NumPages,
		UserID:    publishUserID,
		Replace:   publishReplace,
	})
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	cmd.Printf("Published %s as %q: %d chunks into namespace %q\n", name, docID, n, publishNamespace)
	return nil
}
