package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"suretakip/internal/dates"
	"suretakip/internal/engine"
	"suretakip/internal/status"
)

func obligationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "obligation",
		Short: "Manage licensing obligations",
		Long:  "Obligations are dated duties toward the regulator: reports to file, fees to pay, permits to renew. Each belongs to a project and is classified by how close its deadline is.",
	}
	cmd.AddCommand(obligationAddCmd())
	cmd.AddCommand(obligationListCmd())
	cmd.AddCommand(obligationCompleteCmd())
	cmd.AddCommand(obligationCommentCmd())
	cmd.AddCommand(obligationSetDeadlineCmd())
	return cmd
}

func obligationAddCmd() *cobra.Command {
	var opts engine.ObligationCreateOptions
	var deadline string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an obligation",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := dates.Validate(deadline)
			if err != nil {
				return err
			}
			opts.Deadline = t
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				o, err := s.eng.AddObligation(opts)
				if err != nil {
					return err
				}
				if err := s.save(ctx); err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ProjectName, "project", "", "project name")
	cmd.Flags().StringVar(&opts.ProjectLink, "project-link", "", "project document URL")
	cmd.Flags().StringVar(&opts.Type, "type", "", "obligation type")
	cmd.Flags().StringVar(&opts.Description, "description", "", "obligation description")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline (DD.MM.YYYY or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("deadline")
	return cmd
}

func obligationListCmd() *cobra.Command {
	var bucket, project string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List obligations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				now := time.Now()
				items := s.store.Obligations
				if project != "" {
					filtered := items[:0:0]
					for _, o := range items {
						if strings.EqualFold(o.ProjectName, project) {
							filtered = append(filtered, o)
						}
					}
					items = filtered
				}
				if bucket != "" {
					want := status.Status(bucket)
					filtered := items[:0:0]
					for _, o := range items {
						if status.Classify(now, o.Deadline.Time, o.Status) == want {
							filtered = append(filtered, o)
						}
					}
					items = filtered
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Proje", "Tür", "Son Tarih", "Kalan", "Durum"})
				for _, o := range items {
					st := status.Classify(now, o.Deadline.Time, o.Status)
					tw.AppendRow(table.Row{
						o.ID,
						o.ProjectName,
						o.ObligationType,
						dates.Format(o.Deadline.Time),
						status.RemainingText(now, o.Deadline.Time, o.Status),
						status.Label(st),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bucket, "status", "", "bucket filter (completed, this-week, this-month, upcoming)")
	cmd.Flags().StringVar(&project, "project", "", "project name filter")
	return cmd
}

func obligationCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Toggle an obligation between completed and pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				newStatus, err := s.eng.ToggleObligationStatus(args[0])
				if err != nil {
					return err
				}
				if err := s.save(ctx); err != nil {
					return err
				}
				fmt.Printf("%s -> %s\n", args[0], newStatus)
				return nil
			})
		},
	}
	return cmd
}

func obligationCommentCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "comment <id>",
		Short: "Comment on an obligation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("--text required")
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if err := s.eng.CommentObligation(args[0], actor(), text); err != nil {
					return err
				}
				return s.save(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "comment text")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func obligationSetDeadlineCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "set-deadline <id>",
		Short: "Move an obligation's deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := dates.Validate(date)
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if err := s.eng.SetObligationDeadline(args[0], t); err != nil {
					return err
				}
				return s.save(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "new deadline (DD.MM.YYYY or YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
