package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abem93/progress-widgets/internal/auth"
	"github.com/abem93/progress-widgets/internal/bootstrap"
	"github.com/abem93/progress-widgets/internal/config"
	"github.com/abem93/progress-widgets/internal/embed"
	"github.com/abem93/progress-widgets/internal/models"
	"github.com/abem93/progress-widgets/internal/progress"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every command runs against: the wired app and the session
// manager of this machine.
type env struct {
	app     *bootstrap.App
	manager *auth.Manager
}

func (e *env) Close() {
	e.manager.Close()
	_ = e.app.Close()
}

func newRootCmd() *cobra.Command {
	var statePath string

	root := &cobra.Command{
		Use:           "widgetctl",
		Short:         "Manage progress widgets from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&statePath, "state", "", "session state file (default ~/.progress-widgets/session.json)")

	root.AddCommand(newLoginCmd(&statePath))
	root.AddCommand(newSignupCmd(&statePath))
	root.AddCommand(newCompleteCmd(&statePath))
	root.AddCommand(newWhoamiCmd(&statePath))
	root.AddCommand(newLogoutCmd(&statePath))
	root.AddCommand(newWatchCmd(&statePath))
	root.AddCommand(newWidgetsCmd(&statePath))
	return root
}

func loadEnv(ctx context.Context, statePath string) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if statePath == "" {
		statePath, err = auth.DefaultStatePath()
		if err != nil {
			return nil, err
		}
	}
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	manager := app.Manager(auth.NewFileState(statePath))
	if _, err := manager.Restore(); err != nil {
		_ = app.Close()
		return nil, err
	}
	return &env{app: app, manager: manager}, nil
}

// requireSession returns the signed-in session or a hint to log in.
func (e *env) requireSession() (*auth.Session, error) {
	s := e.manager.Current()
	if s == nil {
		return nil, fmt.Errorf("not signed in; run widgetctl login <email>")
	}
	return s, nil
}

func newLoginCmd(statePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Email yourself a sign-in link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), *statePath)
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.manager.SendMagicLink(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Sign-in link sent to %s. Run widgetctl complete <link> once it arrives.\n", args[0])
			return nil
		},
	}
}

func newSignupCmd(statePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signup <email> <name>",
		Short: "Create an account and email a sign-in link",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), *statePath)
			if err != nil {
				return err
			}
			defer e.Close()
			name := strings.Join(args[1:], " ")
			if err := e.manager.SignUp(cmd.Context(), args[0], name); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s! Check %s for your sign-in link.\n", name, args[0])
			return nil
		},
	}
}

func newCompleteCmd(statePath *string) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "complete <link>",
		Short: "Finish signing in with the link from your email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), *statePath)
			if err != nil {
				return err
			}
			defer e.Close()
			user, err := e.manager.CompleteMagicLinkSignIn(cmd.Context(), email, args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", user.Name, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "address the link was sent to (defaults to the pending one)")
	return cmd
}

func newWhoamiCmd(statePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd.Context(), *statePath)
			if err != nil {
				return err
			}
			defer e.Close()
			out := cmd.OutOrStdout()
			s := e.manager.Current()
			if s == nil {
				if phase, pending := e.manager.Phase(); phase == auth.PhasePendingMagicLink {
					_, _ = fmt.Fprintf(out, "Waiting for the sign-in link sent to %s\n", pending)
					return nil
				}
				_, _ = fmt.Fprintln(out, "Not signed in")
				return nil
			}
			user, err := e.app.Auth.Profile(cmd.Context(), s.UID)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "%s <%s> (%s)\n", user.Name, user.Email, user.ID)
			return nil
		},
	}
}

func newLogoutCmd(statePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of this machine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd.Context(), *statePath)
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.manager.SignOut(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWatchCmd(statePath *string) *cobra.Command {
	interval := new(time.Duration)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print session changes until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := loadEnv(ctx, *statePath)
			if err != nil {
				return err
			}
			defer e.Close()

			events, unsubscribe := e.manager.ObserveSession()
			defer unsubscribe()
			// Follow logins and logouts run from other terminals.
			go e.manager.Watch(ctx, *interval)
			for {
				select {
				case <-ctx.Done():
					return nil
				case s, ok := <-events:
					if !ok {
						return nil
					}
					printSession(cmd.OutOrStdout(), s)
				}
			}
		},
	}
	cmd.Flags().DurationVar(interval, "interval", time.Second, "how often to re-read the state file")
	return cmd
}

func printSession(w io.Writer, s *auth.Session) {
	if s == nil {
		_, _ = fmt.Fprintln(w, "session: signed out")
		return
	}
	_, _ = fmt.Fprintf(w, "session: %s <%s>\n", s.UID, s.Email)
}

func newWidgetsCmd(statePath *string) *cobra.Command {
	widgets := &cobra.Command{Use: "widgets", Short: "Manage your widgets"}

	widgets.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your widgets, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd.Context(), *statePath)
			if err != nil {
				return err
			}
			defer e.Close()
			s, err := e.requireSession()
			if err != nil {
				return err
			}
			list, err := e.app.WidgetService.List(cmd.Context(), s.UID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				_, _ = fmt.Fprintln(out, "No widgets yet")
				return nil
			}
			for _, w := range list {
				_, _ = fmt.Fprintf(out, "%s\t%s\t%d items\t%d views\n", w.ID, w.Name, len(w.Items), w.EmbedViews)
			}
			return nil
		},
	})

	var items []string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a widget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseItems(items)
			if err != nil {
				return err
			}
			e, err := loadEnv(cmd.Context(), *statePath)
			if err != nil {
				return err
			}
			defer e.Close()
			s, err := e.requireSession()
			if err != nil {
				return err
			}
			w, err := e.app.WidgetService.Create(cmd.Context(), s.UID, models.CreateWidgetRequest{Name: args[0], Items: parsed})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n%s\n", w.ID, embed.Code(e.app.Config.BaseURL, w.ID))
			return nil
		},
	}
	create.Flags().StringArrayVar(&items, "item", nil, `progress item as "label=current/goal[:color]" (repeatable)`)
	widgets.AddCommand(create)

	widgets.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a widget as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), *statePath)
			if err != nil {
				return err
			}
			defer e.Close()
			s, err := e.requireSession()
			if err != nil {
				return err
			}
			w, err := e.app.WidgetService.Get(cmd.Context(), s.UID, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(w)
		},
	})

	widgets.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a widget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), *statePath)
			if err != nil {
				return err
			}
			defer e.Close()
			s, err := e.requireSession()
			if err != nil {
				return err
			}
			if err := e.app.WidgetService.Delete(cmd.Context(), s.UID, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})

	return widgets
}

// parseItems reads "label=current/goal[:color]" specs. An empty list yields
// the single default item.
func parseItems(specs []string) ([]models.ProgressItem, error) {
	if len(specs) == 0 {
		return []models.ProgressItem{progress.NewItem("1")}, nil
	}
	items := make([]models.ProgressItem, 0, len(specs))
	for i, spec := range specs {
		label, rest, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("item %q: want label=current/goal", spec)
		}
		rest, color, hasColor := strings.Cut(rest, ":")
		cur, goal, ok := strings.Cut(rest, "/")
		if !ok {
			return nil, fmt.Errorf("item %q: want label=current/goal", spec)
		}
		current, err := strconv.ParseFloat(strings.TrimSpace(cur), 64)
		if err != nil {
			return nil, fmt.Errorf("item %q: current: %w", spec, err)
		}
		g, err := strconv.ParseFloat(strings.TrimSpace(goal), 64)
		if err != nil {
			return nil, fmt.Errorf("item %q: goal: %w", spec, err)
		}

		item := progress.NewItem(strconv.Itoa(i + 1))
		item.Label = strings.TrimSpace(label)
		item = progress.Edit(item, progress.FieldGoal, g)
		item = progress.Edit(item, progress.FieldCurrent, current)
		if hasColor {
			item.Color = strings.TrimSpace(color)
		}
		items = append(items, item)
	}
	return items, nil
}
