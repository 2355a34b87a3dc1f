package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"

	"lawchat/internal/config"
	"lawchat/internal/conversation"
	"lawchat/internal/model"
)

// rootState is filled in by the root command's pre-run hook.
type rootState struct {
	env     *Env
	debug   bool
	baseURL string
}

// NewRootCmd creates the root command
func NewRootCmd(version string) *cobra.Command {
	rt := &rootState{}

	rootCmd := &cobra.Command{
		Use:   "lawchat",
		Short: "Chat with the Temple Law assistant",
		Long: `lawchat asks questions of the Temple Law retrieval-augmented assistant,
keeps the conversation going across runs, and exposes the admin console
(sessions, overrides, model comparison, users) for logged-in staff.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if rt.baseURL != "" {
				cfg.Backend.BaseURL = rt.baseURL
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			env, err := NewEnv(cfg, cmd.OutOrStdout(), rt.debug)
			if err != nil {
				return err
			}
			rt.env = env
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), rt.env)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&rt.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rt.baseURL, "backend", "", "Backend base URL (overrides config)")

	rootCmd.AddCommand(newAskCmd(rt))
	rootCmd.AddCommand(newResetCmd(rt))
	rootCmd.AddCommand(newHistoryCmd(rt))
	rootCmd.AddCommand(newLoginCmd(rt))
	rootCmd.AddCommand(newLogoutCmd(rt))
	rootCmd.AddCommand(newWhoAmICmd(rt))
	rootCmd.AddCommand(newModelsCmd(rt))
	rootCmd.AddCommand(newAdminCmd(rt))
	rootCmd.AddCommand(newConfigCmd(rt))
	rootCmd.AddCommand(newVersionCmd(version))

	return rootCmd
}

// Execute runs the command tree with a context cancelled on SIGINT/SIGTERM.
func Execute(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd.ExecuteContext(ctx)
}

func newAskCmd(rt *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question in the current session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := rt.env.Controller(nil)
			reply, err := ctrl.Send(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprint(rt.env.Out, RenderMessage(reply.Index, reply.Message))
			if reply.Failed {
				return errors.New("request failed")
			}
			return nil
		},
	}
}

func newResetCmd(rt *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the current session and start a new one",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := rt.env.Controller(nil)
			ctrl.Reset(cmd.Context())
			msg, _ := ctrl.Log().At(0)
			fmt.Fprintln(rt.env.Out, mutedStyle.Render(msg.Content))
			return nil
		},
	}
}

func newHistoryCmd(rt *rootState) *cobra.Command {
	var output string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the current session's history from the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctrl := rt.env.Controller(nil)
			history, err := ctrl.History(ctx)
			if err != nil {
				return err
			}
			transcript := model.Transcript{SID: ctrl.SID(ctx), History: history}

			if output != "" {
				if output == "-" {
					output = conversation.ExportFileName(transcript.SID)
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s failed: %w", output, err)
				}
				defer f.Close()
				if err := conversation.WriteTranscript(f, transcript); err != nil {
					return err
				}
				fmt.Fprintln(rt.env.Out, mutedStyle.Render("Saved "+output))
				return nil
			}
			if asJSON {
				return conversation.WriteTranscript(rt.env.Out, transcript)
			}
			fmt.Fprint(rt.env.Out, RenderTranscript(history))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", `Write the transcript to a file ("-" for chat-<sid>.json)`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the transcript as JSON")
	return cmd
}

func newLoginCmd(rt *rootState) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the admin console",
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			var err error
			if username == "" {
				username, password, err = PromptCredentials()
			} else {
				password, err = promptPassword()
			}
			if err != nil {
				return err
			}

			login, err := rt.env.Auth.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.env.Out, "Logged in as %s (%s)\n", login.Username, login.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	return cmd
}

func newLogoutCmd(rt *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored admin token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.env.Auth.Logout(cmd.Context())
		},
	}
}

func newWhoAmICmd(rt *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored login",
		RunE: func(cmd *cobra.Command, args []string) error {
			login, err := rt.env.Auth.Current(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.env.Out, "user: %s\nrole: %s\n", valueOr(login.Username, "-"), valueOr(login.Role, "-"))
			if !login.ExpiresAt.IsZero() {
				fmt.Fprintf(rt.env.Out, "expires: %s\n", login.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newModelsCmd(rt *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List or choose the answer model",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the models and mark the selected one",
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := rt.env.Settings.Current(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range rt.env.Settings.Models() {
				mark := " "
				if m == current {
					mark = "*"
				}
				fmt.Fprintf(rt.env.Out, "%s %s\n", mark, m)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "select [model]",
		Short: "Choose the model sent with each question",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				return rt.env.Settings.Select(ctx, args[0])
			}
			current, err := rt.env.Settings.Current(ctx)
			if err != nil {
				return err
			}
			selected, err := PromptModel(rt.env.Settings.Models(), current)
			if err != nil {
				return err
			}
			return rt.env.Settings.Select(ctx, selected)
		},
	})

	return cmd
}

func newConfigCmd(rt *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective client configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rt.env.Config
			fmt.Fprintf(rt.env.Out, "backend:      %s\n", cfg.Backend.BaseURL)
			fmt.Fprintf(rt.env.Out, "timeout:      %s\n", cfg.BackendTimeout())
			fmt.Fprintf(rt.env.Out, "state file:   %s\n", rt.env.KV.Path())
			fmt.Fprintf(rt.env.Out, "models:       %s\n", strings.Join(cfg.Client.Models, ", "))
			fmt.Fprintf(rt.env.Out, "page size:    %d\n", cfg.Client.PageSize)
			fmt.Fprintf(rt.env.Out, "sealed token: %t\n", cfg.Auth.SealKey != "")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check that the backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.env.Client.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(rt.env.Out, "backend reachable")
			return nil
		},
	})

	return cmd
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lawchat %s\n", version)
		},
	}
}

func valueOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func isInterrupt(err error) bool {
	return errors.Is(err, terminal.InterruptErr)
}
