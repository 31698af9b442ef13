package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pagedoc/internal/app"
	"pagedoc/internal/domain"
	"pagedoc/internal/pager"
	"pagedoc/internal/render"
	"pagedoc/internal/service"
)

var errNoTerminal = errors.New("stdin is not a terminal; pass --yes to confirm")

// confirmer asks on the terminal, or refuses outright when nobody can
// answer and --yes was not given.
func confirmer(cmd *cobra.Command, yes bool) pager.Confirmer {
	if !yes && !term.IsTerminal(int(os.Stdin.Fd())) {
		return pager.ConfirmFunc(func(context.Context, string) (bool, error) {
			return false, errNoTerminal
		})
	}
	return app.TerminalConfirmer{In: cmd.InOrStdin(), Out: cmd.OutOrStdout(), AssumeYes: yes}
}

// viewEmitter feeds pager events, stripped of their document tag, into a
// render.View and passes the original event on.
type viewEmitter struct {
	view *render.View
	next service.EventEmitter
}

func newViewEmitter(next service.EventEmitter) *viewEmitter {
	return &viewEmitter{view: render.NewView(nil), next: next}
}

func (e *viewEmitter) Emit(ctx context.Context, event string, data any) {
	if de, ok := data.(service.DocumentEvent); ok {
		e.view.Emit(ctx, event, de.Data)
	}
	if e.next != nil {
		e.next.Emit(ctx, event, data)
	}
}

func printPages(w io.Writer, st *domain.PageState, status string) error {
	fmt.Fprintf(w, "%s (%s)\n", st.Document.Name, st.Document.ID)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tPAGE\tID\tBLOCKS\tWORDS")
	for i, p := range st.Pages {
		mark := ""
		if i == st.CurrentIndex {
			mark = ">"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\n", mark, p.Number, p.ID, len(p.Blocks), p.WordCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if status != "" {
		fmt.Fprintln(w, status)
	}
	return nil
}

var pagesCmd = &cobra.Command{
	Use:   "pages [document]",
	Short: "Show the pages of a document",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ve := newViewEmitter(nil)
		return withApp(cmd.Context(), func(a *app.App) error {
			id, err := resolveDocument(a, args)
			if err != nil {
				return err
			}
			st, err := a.Documents().Open(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printPages(cmd.OutOrStdout(), st, ve.view.StatusLine())
		}, app.WithEmitter(ve))
	},
}

var addPageCmd = &cobra.Command{
	Use:   "add-page [document]",
	Short: "Append an empty page and make it current",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			id, err := resolveDocument(a, args)
			if err != nil {
				return err
			}
			p, err := a.Documents().AddPage(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := a.Documents().Save(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added page %d (%s)\n", p.Number, p.ID)
			return nil
		})
	},
}

var gotoCmd = &cobra.Command{
	Use:   "goto <page> [document]",
	Short: "Make a page current (1-based)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid page number %q", args[0])
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			id, err := resolveDocument(a, args[1:])
			if err != nil {
				return err
			}
			nav, moved, err := a.Documents().GoToPage(cmd.Context(), id, n-1)
			if err != nil {
				return err
			}
			return reportNav(cmd.OutOrStdout(), nav, moved)
		})
	},
}

var nextCmd = &cobra.Command{
	Use:   "next [document]",
	Short: "Move to the next page",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			id, err := resolveDocument(a, args)
			if err != nil {
				return err
			}
			nav, moved, err := a.Documents().NextPage(cmd.Context(), id)
			if err != nil {
				return err
			}
			return reportNav(cmd.OutOrStdout(), nav, moved)
		})
	},
}

var prevCmd = &cobra.Command{
	Use:   "prev [document]",
	Short: "Move to the previous page",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			id, err := resolveDocument(a, args)
			if err != nil {
				return err
			}
			nav, moved, err := a.Documents().PreviousPage(cmd.Context(), id)
			if err != nil {
				return err
			}
			return reportNav(cmd.OutOrStdout(), nav, moved)
		})
	},
}

func reportNav(w io.Writer, nav pager.NavState, moved bool) error {
	if !moved {
		fmt.Fprintf(w, "Stayed on page %d of %d\n", nav.Current, nav.Total)
		return nil
	}
	fmt.Fprintf(w, "Page %d of %d\n", nav.Current, nav.Total)
	return nil
}

var removePageCmd = &cobra.Command{
	Use:   "remove-page [document]",
	Short: "Remove the current page",
	Long: `Remove the current page of a document after confirmation.

The last remaining page is never removed. Use --page to pick the page
first, and --yes to skip the question.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		page, _ := cmd.Flags().GetInt("page")

		return withApp(cmd.Context(), func(a *app.App) error {
			id, err := resolveDocument(a, args)
			if err != nil {
				return err
			}
			docs := a.Documents()
			if page > 0 {
				if _, moved, err := docs.GoToPage(cmd.Context(), id, page-1); err != nil {
					return err
				} else if !moved {
					return fmt.Errorf("document has no page %d", page)
				}
			}

			removed, err := docs.RemoveCurrentPage(cmd.Context(), id)
			switch {
			case errors.Is(err, pager.ErrLastPage):
				fmt.Fprintln(cmd.OutOrStdout(), "A document keeps at least one page.")
				return nil
			case errors.Is(err, pager.ErrNotConfirmed):
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			case err != nil:
				return err
			}
			if !removed {
				return nil
			}
			if err := docs.Save(cmd.Context(), id); err != nil {
				return err
			}
			nav, err := docs.Navigation(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed. Now on page %d of %d\n", nav.Current, nav.Total)
			return nil
		}, app.WithConfirmer(confirmer(cmd, yes)))
	},
}

func init() {
	removePageCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	removePageCmd.Flags().Int("page", 0, "Page number to remove (default: current page)")

	rootCmd.AddCommand(pagesCmd, addPageCmd, gotoCmd, nextCmd, prevCmd, removePageCmd)
}
