package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pagedoc/internal/app"
)

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a document with one empty page and make it active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			d, err := a.Documents().CreateDocument(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", d.Name, d.ID)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List documents",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			docs, err := a.Documents().ListDocuments()
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No documents. Create one with: pagedoc new <name>")
				return nil
			}
			active := a.Documents().ActiveDocument()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\tID\tNAME\tUPDATED")
			for _, d := range docs {
				mark := ""
				if d.ID == active {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, d.ID, d.Name, d.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

var useCmd = &cobra.Command{
	Use:   "use <document>",
	Short: "Make a document the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			return a.Documents().SetActiveDocument(args[0])
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <document> <name>",
	Short: "Rename a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			return a.Documents().RenameDocument(args[0], args[1])
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document>",
	Short: "Delete a document and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		return withApp(cmd.Context(), func(a *app.App) error {
			ok, err := confirmer(cmd, yes).Confirm(cmd.Context(), fmt.Sprintf("Delete document %s?", args[0]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			return a.Documents().DeleteDocument(args[0])
		})
	},
}

// documentArg returns the optional document argument, or "" for the
// active document.
func documentArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// resolveDocument picks the document a command works on and checks it
// exists.
func resolveDocument(a *app.App, args []string) (string, error) {
	id, err := a.Documents().Resolve(documentArg(args))
	if err != nil {
		return "", fmt.Errorf("%w (pass a document id or run: pagedoc use <id>)", err)
	}
	return id, nil
}

func init() {
	deleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	rootCmd.AddCommand(newCmd, listCmd, useCmd, renameCmd, deleteCmd)
}
