package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	chiTransport "github.com/kailas-cloud/knowledgeops/internal/transport/chi"
	"github.com/kailas-cloud/knowledgeops/internal/usecase/ingestion"
)

type ingestFlags struct {
	tenant     string
	department string
	title      string
	file       string
	documentID string
}

func newIngestCmd(env func() string) *cobra.Command {
	var f ingestFlags

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a plain-text file into a department knowledge base",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			text, err := os.ReadFile(filepath.Clean(f.file))
			if err != nil {
				return fmt.Errorf("read %s: %w", f.file, err)
			}

			a, err := newApp(ctx, env())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.index.EnsureIndex(ctx); err != nil {
				return fmt.Errorf("ensure vector index: %w", err)
			}

			doc, err := a.ingestion().Ingest(ctx, ingestion.Request{
				TenantID:     f.tenant,
				DepartmentID: f.department,
				DocumentID:   f.documentID,
				Title:        f.title,
				SourceName:   filepath.Base(f.file),
				Text:         string(text),
			})
			if err != nil {
				return fmt.Errorf("ingest %s: %w", f.file, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\t%s\t%d chunks\n", doc.ID(), doc.Status(), doc.ChunkCount())
			if doc.Error() != "" {
				fmt.Fprintf(out, "error: %s\n", doc.Error())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.tenant, "tenant", chiTransport.DefaultTenant, "tenant id")
	cmd.Flags().StringVar(&f.department, "department", "", "department id")
	cmd.Flags().StringVar(&f.title, "title", "", "document title (defaults to the file name)")
	cmd.Flags().StringVar(&f.file, "file", "", "path to a UTF-8 text file")
	cmd.Flags().StringVar(&f.documentID, "document-id", "", "document id; re-ingesting the same id replaces it")
	_ = cmd.MarkFlagRequired("department")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
