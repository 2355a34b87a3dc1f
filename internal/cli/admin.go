package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lawchat/internal/app"
	"lawchat/internal/model"
)

func newAdminCmd(rt *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin console (requires login)",
	}

	cmd.AddCommand(newAdminSessionsCmd(rt))
	cmd.AddCommand(newAdminSessionCmd(rt))
	cmd.AddCommand(newAdminDeleteCmd(rt))
	cmd.AddCommand(newAdminExportCmd(rt))
	cmd.AddCommand(newAdminOverridesCmd(rt))
	cmd.AddCommand(newAdminCompareCmd(rt))
	cmd.AddCommand(newAdminUsersCmd(rt))
	return cmd
}

func newAdminSessionsCmd(rt *rootState) *cobra.Command {
	var filter app.SessionFilter
	var skip int
	var browse bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List chat sessions, optionally filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := rt.env.Admin(ctx)
			if err != nil {
				return err
			}
			if browse {
				return browseSessions(ctx, rt, svc, filter)
			}
			list, err := svc.ListSessions(ctx, filter, skip)
			if err != nil {
				return err
			}
			fmt.Fprint(rt.env.Out, RenderSessionList(list))
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter.Q, "query", "q", "", "Search text")
	cmd.Flags().StringVar(&filter.From, "from", "", "Earliest date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filter.To, "to", "", "Latest date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&skip, "skip", 0, "Rows to skip")
	cmd.Flags().BoolVarP(&browse, "interactive", "i", false, "Page through sessions interactively")
	return cmd
}

// browseSessions is the paged session browser.
func browseSessions(ctx context.Context, rt *rootState, svc *app.AdminService, filter app.SessionFilter) error {
	skip := 0
	for {
		list, err := svc.ListSessions(ctx, filter, skip)
		if err != nil {
			return err
		}
		fmt.Fprint(rt.env.Out, RenderSessionList(list))

		sids := make([]string, 0, len(list.Rows))
		for _, row := range list.Rows {
			sids = append(sids, row.SID)
		}

		action, err := PromptBrowseAction(browseActions(list.Pager.HasPrev(), list.Pager.HasNext(), len(sids) > 0))
		if err != nil {
			if isInterrupt(err) {
				return nil
			}
			return err
		}

		switch action {
		case actionNext:
			skip = list.Pager.Next().Skip
		case actionPrev:
			skip = list.Pager.Prev().Skip
		case actionOpen:
			sid, err := PromptSession(sids)
			if err != nil {
				continue
			}
			if err := showSession(ctx, rt, svc, sid); err != nil {
				fmt.Fprintln(rt.env.Out, RenderError(err))
			}
		case actionDelete:
			sid, err := PromptSession(sids)
			if err != nil {
				continue
			}
			ok, err := Confirm(fmt.Sprintf("Delete session %s?", sid))
			if err != nil || !ok {
				continue
			}
			if err := svc.DeleteSession(ctx, sid); err != nil {
				fmt.Fprintln(rt.env.Out, RenderError(err))
			}
		case actionFilter:
			next, err := promptFilter(filter)
			if err != nil {
				continue
			}
			filter = next
			skip = 0
		case actionExport:
			if err := exportSessions(ctx, rt, svc, app.ExportFileName); err != nil {
				fmt.Fprintln(rt.env.Out, RenderError(err))
			}
		case actionQuit:
			return nil
		}
	}
}

func promptFilter(current app.SessionFilter) (app.SessionFilter, error) {
	q, err := PromptText("Search:", current.Q)
	if err != nil {
		return current, err
	}
	from, err := PromptDate("From:", current.From)
	if err != nil {
		return current, err
	}
	to, err := PromptDate("To:", current.To)
	if err != nil {
		return current, err
	}
	return app.SessionFilter{Q: q, From: from, To: to}, nil
}

func showSession(ctx context.Context, rt *rootState, svc *app.AdminService, sid string) error {
	detail, err := svc.Session(ctx, sid)
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.env.Out, RenderTitle("Session "+detail.SID))
	fmt.Fprint(rt.env.Out, RenderTranscript(detail.History))
	return nil
}

func newAdminSessionCmd(rt *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "session <sid>",
		Short: "Show one session's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.env.Admin(cmd.Context())
			if err != nil {
				return err
			}
			return showSession(cmd.Context(), rt, svc, args[0])
		},
	}
}

func newAdminDeleteCmd(rt *rootState) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <sid>...",
		Short: "Delete one or more sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := rt.env.Admin(ctx)
			if err != nil {
				return err
			}
			if !yes {
				ok, err := Confirm(fmt.Sprintf("Delete %d session(s)?", len(args)))
				if err != nil || !ok {
					return err
				}
			}

			results, err := svc.DeleteSessions(ctx, args)
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
					fmt.Fprintf(rt.env.Out, "%s  %s\n", r.SID, errorStyle.Render(r.Error))
					continue
				}
				fmt.Fprintf(rt.env.Out, "%s  deleted\n", r.SID)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d deletions failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newAdminExportCmd(rt *rootState) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download every session as NDJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.env.Admin(cmd.Context())
			if err != nil {
				return err
			}
			return exportSessions(cmd.Context(), rt, svc, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", app.ExportFileName, `Output file ("-" for stdout)`)
	return cmd
}

func exportSessions(ctx context.Context, rt *rootState, svc *app.AdminService, output string) error {
	if output == "-" {
		_, err := svc.Export(ctx, rt.env.Out)
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s failed: %w", output, err)
	}
	n, err := svc.Export(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(output)
		return err
	}
	fmt.Fprintln(rt.env.Out, mutedStyle.Render(fmt.Sprintf("Saved %s (%d bytes)", output, n)))
	return nil
}

func newAdminOverridesCmd(rt *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "Manage canonical answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.env.Admin(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := svc.Overrides(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(rt.env.Out, RenderOverrides(rows))
			return nil
		},
	}

	var o model.Override
	create := &cobra.Command{
		Use:   "add",
		Short: "Add an override",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.env.Admin(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := svc.CreateOverride(cmd.Context(), o)
			if err != nil {
				return err
			}
			fmt.Fprint(rt.env.Out, RenderOverrides(rows))
			return nil
		},
	}
	create.Flags().StringVar(&o.Question, "question", "", "Question text")
	create.Flags().StringVar(&o.Answer, "answer", "", "Canonical answer")
	create.Flags().StringSliceVar(&o.Sources, "source", nil, "Source URL (repeatable)")
	create.Flags().BoolVar(&o.Force, "force", false, "Always answer with this override")
	create.Flags().BoolVar(&o.Enabled, "enabled", true, "Enable the override")

	var question, answer string
	var sources []string
	var force, enabled bool
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := model.OverridePatch{}
			flags := cmd.Flags()
			if flags.Changed("question") {
				patch.Question = &question
			}
			if flags.Changed("answer") {
				patch.Answer = &answer
			}
			if flags.Changed("source") {
				patch.Sources = sources
			}
			if flags.Changed("force") {
				patch.Force = &force
			}
			if flags.Changed("enabled") {
				patch.Enabled = &enabled
			}

			svc, err := rt.env.Admin(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := svc.UpdateOverride(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			fmt.Fprint(rt.env.Out, RenderOverrides(rows))
			return nil
		},
	}
	update.Flags().StringVar(&question, "question", "", "Question text")
	update.Flags().StringVar(&answer, "answer", "", "Canonical answer")
	update.Flags().StringSliceVar(&sources, "source", nil, "Source URL (repeatable)")
	update.Flags().BoolVar(&force, "force", false, "Always answer with this override")
	update.Flags().BoolVar(&enabled, "enabled", true, "Enable the override")

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.env.Admin(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := svc.DeleteOverride(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(rt.env.Out, RenderOverrides(rows))
			return nil
		},
	}

	cmd.AddCommand(create, update, remove)
	return cmd
}

func newAdminCompareCmd(rt *rootState) *cobra.Command {
	var models []string
	var pick bool

	cmd := &cobra.Command{
		Use:   "compare [question]",
		Short: "Ask several models the same question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := rt.env.Admin(ctx)
			if err != nil {
				return err
			}

			if len(models) == 0 {
				if models, err = rt.env.Settings.CompareSelection(ctx); err != nil {
					return err
				}
			}
			if pick {
				if models, err = PromptCompareModels(rt.env.Settings.Models(), models); err != nil {
					return err
				}
				if err := rt.env.Settings.SetCompareSelection(ctx, models); err != nil {
					return err
				}
			}

			results, err := svc.CompareModels(ctx, strings.Join(args, " "), models)
			if err != nil {
				return err
			}
			fmt.Fprint(rt.env.Out, RenderComparison(results))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&models, "model", "m", nil, "Model to compare (repeatable)")
	cmd.Flags().BoolVarP(&pick, "select", "s", false, "Choose models interactively and remember the choice")
	return cmd
}

func newAdminUsersCmd(rt *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage admin console accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.env.Admin(cmd.Context())
			if err != nil {
				return err
			}
			users, err := svc.Users(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(rt.env.Out, RenderUsers(users))
			return nil
		},
	}

	var role string
	create := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptPassword()
			if err != nil {
				return err
			}
			svc, err := rt.env.Admin(cmd.Context())
			if err != nil {
				return err
			}
			return svc.CreateUser(cmd.Context(), model.UserInput{Username: args[0], Password: password, Role: role})
		},
	}
	create.Flags().StringVar(&role, "role", model.UserRoleViewer, "admin or viewer")

	var newRole string
	var resetPassword bool
	update := &cobra.Command{
		Use:   "update <username>",
		Short: "Change role or password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := model.UserInput{Role: newRole}
			if resetPassword {
				password, err := promptPassword()
				if err != nil {
					return err
				}
				in.Password = password
			}
			svc, err := rt.env.Admin(cmd.Context())
			if err != nil {
				return err
			}
			return svc.UpdateUser(cmd.Context(), args[0], in)
		},
	}
	update.Flags().StringVar(&newRole, "role", "", "admin or viewer")
	update.Flags().BoolVar(&resetPassword, "password", false, "Set a new password")

	remove := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := Confirm(fmt.Sprintf("Delete user %s?", args[0]))
			if err != nil || !ok {
				return err
			}
			svc, err := rt.env.Admin(cmd.Context())
			if err != nil {
				return err
			}
			return svc.DeleteUser(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(create, update, remove)
	return cmd
}
