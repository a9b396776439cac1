package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"novelhub/internal/store"
	"novelhub/pkg/models"
)

func newExportCommand(a *app) *cobra.Command {
	var novelsOut, listsOut string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump migrated novels and reading lists from the document store as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.Context(), openOpts{})
			if err != nil {
				return err
			}
			defer rt.close()

			if err := writeCSVFile(novelsOut, func(w io.Writer) error {
				return exportNovels(cmd.Context(), rt.store, w)
			}); err != nil {
				return fmt.Errorf("export novels: %w", err)
			}
			if err := writeCSVFile(listsOut, func(w io.Writer) error {
				return exportReadingLists(cmd.Context(), rt.store, w)
			}); err != nil {
				return fmt.Errorf("export reading lists: %w", err)
			}

			a.log.Info().Str("novels", novelsOut).Str("reading_lists", listsOut).Msg("export finished")
			return nil
		},
	}
	cmd.Flags().StringVar(&novelsOut, "novels", "data/novels.csv", "output CSV path for novels")
	cmd.Flags().StringVar(&listsOut, "reading-lists", "data/reading_lists.csv", "output CSV path for reading lists")
	return cmd
}

func writeCSVFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// exportNovels writes one row per novel in seq order with genre names resolved.
func exportNovels(ctx context.Context, st *store.Store, out io.Writer) error {
	genres := make(map[string]string)
	if err := st.Genres.Each(ctx, func(g *models.Taxon) error {
		genres[g.ID] = g.Name
		return nil
	}); err != nil {
		return err
	}

	var novels []*models.Novel
	if err := st.Novels.Each(ctx, func(n *models.Novel) error {
		novels = append(novels, n)
		return nil
	}); err != nil {
		return err
	}
	sort.Slice(novels, func(i, j int) bool { return novels[i].Seq < novels[j].Seq })

	w := csv.NewWriter(out)
	if err := w.Write([]string{"id", "seq", "slug", "title", "author", "status", "genres", "chapters_count", "word_count", "updated_at"}); err != nil {
		return err
	}
	for _, n := range novels {
		names := make([]string, 0, len(n.GenreIDs))
		for _, id := range n.GenreIDs {
			if name, ok := genres[id]; ok {
				names = append(names, name)
			}
		}
		if err := w.Write([]string{
			n.ID,
			strconv.FormatInt(n.Seq, 10),
			n.Slug,
			n.Title,
			n.Author,
			string(n.Status),
			strings.Join(names, "|"),
			strconv.Itoa(n.ChaptersCount),
			strconv.Itoa(n.WordCount),
			n.UpdatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func exportReadingLists(ctx context.Context, st *store.Store, out io.Writer) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"id", "user_id", "name", "public", "novel_count", "covers"}); err != nil {
		return err
	}
	err := st.ReadingLists.Each(ctx, func(l *models.ReadingList) error {
		return w.Write([]string{
			l.ID,
			l.UserID,
			l.Name,
			strconv.FormatBool(l.Public),
			strconv.Itoa(l.NovelCount),
			strings.Join(l.Covers, "|"),
		})
	})
	if err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
