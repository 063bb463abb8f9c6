package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recera/perplexia/internal/library"
)

func newFetchCommand(a *app) *cobra.Command {
	var sessionID int64

	cmd := &cobra.Command{
		Use:   "fetch <pdf-id>...",
		Short: "Copy documents into the local library",
		Long: `Loads each document and its mindmap from the configured source and stores
them in the local library for offline viewing. The api source needs a chat
session, given with --session or backend.session_id.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid pdf id %q", arg)
				}
				ids = append(ids, id)
			}
			return a.runFetch(cmd.Context(), sessionID, ids, func(doc library.Document) {
				fmt.Fprintf(cmd.OutOrStdout(), "fetched %d %s (%s)\n", doc.PDFID, doc.Filename, doc.Title)
			})
		},
	}

	cmd.Flags().Int64VarP(&sessionID, "session", "s", 0, "Chat session id (api source)")

	return cmd
}

func (a *app) runFetch(ctx context.Context, sessionID int64, ids []int64, report func(library.Document)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if a.cfg.Source.Kind == "library" {
		return errors.New("source.kind is library; fetch needs a remote source")
	}

	src, closeSrc, err := a.openSource(ctx, sessionID)
	if err != nil {
		return err
	}
	defer closeSrc()

	lib, err := library.Open(a.cfg.Library.Path)
	if err != nil {
		return err
	}
	defer lib.Close()

	for _, id := range ids {
		doc, err := src.Document(ctx, id)
		if err != nil {
			return err
		}
		stored := library.Document{
			PDFID:    doc.PDFID,
			Filename: doc.Filename,
			Title:    doc.Mindmap.Title,
			Mindmap:  doc.Raw,
			Summary:  doc.Summary,
		}
		if err := lib.Put(ctx, stored); err != nil {
			return fmt.Errorf("store document %d: %w", id, err)
		}
		a.logger.Debug("document stored", zap.Int64("pdf_id", id), zap.String("library", a.cfg.Library.Path))
		report(stored)
	}
	return nil
}
