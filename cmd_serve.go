package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pagedoc/internal/app"
	mcpserver "pagedoc/internal/mcp"
	"pagedoc/internal/pager"
)

var watchCmd = &cobra.Command{
	Use:   "watch [document]",
	Short: "Insert every file dropped into the inbox directory",
	Long: `Watch the inbox directory and insert each text or markdown file written
there into the document, then rename it to *.done (or *.failed).

Open documents are autosaved on the configured schedule. Stop with Ctrl-C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		return withApp(ctx, func(a *app.App) error {
			id, err := resolveDocument(a, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", a.Config().Inbox.Dir)
			return a.Watch(ctx, id, func(path string, report pager.InsertReport, err error) {
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", filepath.Base(path), err)
					return
				}
				fmt.Fprintf(out, "%s: %d blocks, %d new pages\n", filepath.Base(path), report.Inserted, report.PagesCreated)
			})
		})
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve documents to an agent over MCP (stdio)",
	Long: `Run an MCP server on stdin/stdout.

Destructive tools such as remove_current_page wait for a human decision.
Answer them from another terminal with: pagedoc approvals --follow`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return app.ServeMCP(ctx, cfg, logger, version)
	},
}

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "List or answer pending MCP approvals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")
		out := cmd.OutOrStdout()

		if !follow {
			return withApp(cmd.Context(), func(a *app.App) error {
				pending, err := mcpserver.ListPendingDB(a.DB().Conn())
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Fprintln(out, "No pending approvals.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTOOL\tREQUESTED\tDESCRIPTION")
				for _, p := range pending {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Tool, p.CreatedAt, p.Description)
				}
				return w.Flush()
			})
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ask := confirmer(cmd, false)
		return withApp(ctx, func(a *app.App) error {
			fmt.Fprintln(out, "Waiting for approvals (Ctrl-C to stop)")
			return a.WatchApprovals(ctx, app.DefaultApprovalPoll, func(ctx context.Context, p mcpserver.PendingAction) {
				ok, err := ask.Confirm(ctx, fmt.Sprintf("[%s] %s", p.Tool, p.Description))
				if err != nil {
					logger.Warn("approval prompt", zap.String("id", p.ID), zap.Error(err))
					return
				}
				if err := mcpserver.ResolveDB(a.DB().Conn(), p.ID, ok); err != nil {
					fmt.Fprintln(out, err)
					return
				}
				if ok {
					fmt.Fprintln(out, "Approved.")
				} else {
					fmt.Fprintln(out, "Rejected.")
				}
			})
		})
	},
}

func resolveApprovalCmd(use, short string, approved bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return mcpserver.ResolveDB(a.DB().Conn(), args[0], approved)
			})
		},
	}
}

func init() {
	approvalsCmd.Flags().BoolP("follow", "f", false, "Keep running and ask about each new approval")
	approvalsCmd.AddCommand(
		resolveApprovalCmd("approve", "Approve a pending action", true),
		resolveApprovalCmd("reject", "Reject a pending action", false),
	)

	rootCmd.AddCommand(watchCmd, mcpCmd, approvalsCmd)
}
