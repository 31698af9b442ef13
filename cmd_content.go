package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pagedoc/internal/app"
	"pagedoc/internal/domain"
	"pagedoc/internal/pager"
)

var insertCmd = &cobra.Command{
	Use:   "insert [document]",
	Short: "Insert text or blocks, splitting them across pages",
	Long: `Insert content at the end of a document.

Plain text is split into one block per non-blank line. Short upper-case
lines and lines ending in a colon become headers. With --blocks the input
is a JSON array of {"type", "data"} blocks instead.

Pages are added whenever the current one is full.

Examples:
  pagedoc insert -f notes.txt
  generate-report | pagedoc insert
  pagedoc insert --blocks -f blocks.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("file")
		asBlocks, _ := cmd.Flags().GetBool("blocks")

		// Check if stdin is being used interactively (not piped)
		if input == "" && term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("no input: pass --file or pipe content on stdin")
		}
		raw, err := readInput(cmd.InOrStdin(), input)
		if err != nil {
			return err
		}

		return withApp(cmd.Context(), func(a *app.App) error {
			id, err := resolveDocument(a, args)
			if err != nil {
				return err
			}
			docs := a.Documents()

			var report pager.InsertReport
			if asBlocks {
				blocks, perr := decodeBlocks(raw)
				if perr != nil {
					return perr
				}
				report, err = docs.InsertBlocks(cmd.Context(), id, blocks)
			} else {
				report, err = docs.InsertContent(cmd.Context(), id, string(raw))
			}
			if err != nil {
				return err
			}
			if err := docs.Save(cmd.Context(), id); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d of %d blocks, %d new pages\n",
				report.Inserted, report.Units, report.PagesCreated)
			for _, f := range report.Failed {
				fmt.Fprintf(cmd.ErrOrStderr(), "  block %d: %v\n", f.Index+1, f.Err)
			}
			return nil
		})
	},
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	// #nosec G304 - user-provided file path is intentional
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

// decodeBlocks parses a JSON block array. Blocks without a type become
// paragraphs.
func decodeBlocks(raw []byte) ([]domain.Block, error) {
	var blocks []domain.Block
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, fmt.Errorf("blocks must be a JSON array of {type, data}: %w", err)
	}
	for i := range blocks {
		if blocks[i].Type == "" {
			blocks[i].Type = domain.BlockTypeParagraph
		}
		if blocks[i].Data == nil {
			blocks[i].Data = map[string]any{}
		}
	}
	return blocks, nil
}

var exportCmd = &cobra.Command{
	Use:   "export [document]",
	Short: "Render a document as markdown",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		write, _ := cmd.Flags().GetBool("write")
		return withApp(cmd.Context(), func(a *app.App) error {
			id, err := resolveDocument(a, args)
			if err != nil {
				return err
			}
			md, path, err := a.Documents().ExportMarkdown(cmd.Context(), id, write)
			if err != nil {
				return err
			}
			if write {
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), md)
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [document]",
	Short: "List saved revisions of a document",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			id, err := resolveDocument(a, args)
			if err != nil {
				return err
			}
			revs, err := a.Documents().History(id)
			if err != nil {
				return err
			}
			if len(revs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No revisions yet.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLABEL\tPAGES\tSAVED")
			for _, r := range revs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.ID, r.Label, r.PageCount, r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <revision> [document]",
	Short: "Replace a document's pages with a saved revision",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		return withApp(cmd.Context(), func(a *app.App) error {
			id, err := resolveDocument(a, args[1:])
			if err != nil {
				return err
			}
			prompt := fmt.Sprintf("Replace the pages of %s with revision %s?", id, shortID(args[0]))
			ok, err := confirmer(cmd, yes).Confirm(cmd.Context(), prompt)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			st, err := a.Documents().RestoreRevision(cmd.Context(), id, args[0])
			if err != nil {
				return err
			}
			return printPages(cmd.OutOrStdout(), st, "")
		})
	},
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func init() {
	insertCmd.Flags().StringP("file", "f", "", "Read content from file (default: stdin)")
	insertCmd.Flags().Bool("blocks", false, "Input is a JSON array of blocks")
	exportCmd.Flags().Bool("write", false, "Write <document>.md into the export directory instead of printing")
	restoreCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	rootCmd.AddCommand(insertCmd, exportCmd, historyCmd, restoreCmd)
}
