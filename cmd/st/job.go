package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"suretakip/internal/dates"
	"suretakip/internal/engine"
	"suretakip/internal/status"
)

func jobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage jobs",
		Long:  "Jobs are the team's own work items. Selecting several projects and assignees creates one independent job per pair, so each person tracks their own copy.",
	}
	cmd.AddCommand(jobAddCmd())
	cmd.AddCommand(jobListCmd())
	cmd.AddCommand(jobDoneCmd())
	cmd.AddCommand(jobDeleteCmd())
	cmd.AddCommand(jobCommentCmd())
	return cmd
}

func jobAddCmd() *cobra.Command {
	var form engine.JobForm
	var due string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create jobs from a form",
		RunE: func(cmd *cobra.Command, args []string) error {
			if due != "" {
				t, err := dates.Validate(due)
				if err != nil {
					return err
				}
				form.DueDate = &t
			}
			form.Actor = actor()
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if form.RelatedObligationID != "" && form.RelatedObligationLabel == "" {
					if o, ok := s.store.GetObligation(form.RelatedObligationID); ok {
						form.RelatedObligationLabel = o.ProjectName + " - " + o.ObligationType
					}
				}
				count, err := s.eng.CreateJobs(form)
				if err != nil {
					return err
				}
				if err := s.save(ctx); err != nil {
					return err
				}
				fmt.Printf("%d iş oluşturuldu\n", count)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&form.Title, "title", "", "job title")
	cmd.Flags().StringVar(&form.Description, "description", "", "description")
	cmd.Flags().StringVar(&form.Priority, "priority", "", "priority (high, medium, low)")
	cmd.Flags().StringVar(&due, "due", "", "due date (DD.MM.YYYY or YYYY-MM-DD)")
	cmd.Flags().StringArrayVar(&form.Projects, "project", []string{}, "project name (repeatable)")
	cmd.Flags().StringArrayVar(&form.Assignees, "assignee", []string{}, "assignee email (repeatable)")
	cmd.Flags().StringVar(&form.RelatedObligationID, "obligation", "", "related obligation id")
	cmd.Flags().StringVar(&form.Emoji, "emoji", "", "emoji badge")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func jobListCmd() *cobra.Command {
	var storedStatus, assignee string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				items := s.store.Jobs
				if storedStatus != "" {
					filtered := items[:0:0]
					for _, j := range items {
						if j.Status == storedStatus {
							filtered = append(filtered, j)
						}
					}
					items = filtered
				}
				if assignee != "" {
					filtered := items[:0:0]
					for _, j := range items {
						if strings.EqualFold(j.Assignee, assignee) {
							filtered = append(filtered, j)
						}
					}
					items = filtered
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "İş", "Proje", "Atanan", "Öncelik", "Son Tarih", "Durum"})
				for _, j := range items {
					dueDate := "-"
					if j.DueDate != nil {
						dueDate = dates.Format(j.DueDate.Time)
					}
					assigneeName := s.store.GetUserName(j.Assignee)
					tw.AppendRow(table.Row{j.ID, j.Title, j.Project, assigneeName, j.Priority, dueDate, j.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&storedStatus, "status", "", fmt.Sprintf("status filter (%s, %s)", status.StoredPending, status.StoredCompleted))
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee email filter")
	return cmd
}

func jobDoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a job between completed and pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				completed, err := s.eng.ToggleJobStatus(args[0], actor())
				if err != nil {
					return err
				}
				if err := s.save(ctx); err != nil {
					return err
				}
				if completed {
					fmt.Println("tamamlandı")
				} else {
					fmt.Println("yeniden açıldı")
				}
				return nil
			})
		},
	}
	return cmd
}

func jobDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if err := s.eng.DeleteJob(args[0]); err != nil {
					return err
				}
				return s.save(ctx)
			})
		},
	}
	return cmd
}

func jobCommentCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "comment <id>",
		Short: "Comment on a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("--text required")
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if err := s.eng.CommentJob(args[0], actor(), text); err != nil {
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
