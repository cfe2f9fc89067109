package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"suretakip/internal/dates"
	"suretakip/internal/domain"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user profiles",
	}
	cmd.AddCommand(userSetCmd())
	cmd.AddCommand(userListCmd())
	return cmd
}

func userSetCmd() *cobra.Command {
	var u domain.AppUser
	cmd := &cobra.Command{
		Use:   "set <email>",
		Short: "Create or update a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u.Email = args[0]
			u.LastUpdated = dates.At(time.Now().UTC())
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if err := s.eng.UpsertUser(u); err != nil {
					return err
				}
				if s.client != nil {
					if err := s.client.PutUser(ctx, u); err != nil {
						return fmt.Errorf("profil sunucuya yazılamadı: %w", err)
					}
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&u.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&u.Title, "title", "", "job title")
	cmd.Flags().StringVar(&u.PhotoURL, "photo", "", "photo URL or data URL")
	return cmd
}

func userListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if s.bridge != nil {
					s.bridge.RefreshUsers(ctx)
				}
				if viper.GetBool("json") {
					return printJSON(s.store.Users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"E-posta", "Ad", "Ünvan"})
				for _, u := range s.store.Users {
					tw.AppendRow(table.Row{u.Email, u.DisplayName, u.Title})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}
