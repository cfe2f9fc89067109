package main

import (
	"context"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"suretakip/internal/dates"
	"suretakip/internal/domain"
	"suretakip/internal/engine"
	"suretakip/internal/logger"
)

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage plants and license records",
	}
	cmd.AddCommand(projectSetCmd())
	cmd.AddCommand(projectListCmd())
	return cmd
}

func projectSetCmd() *cobra.Command {
	var opts engine.ProjectUpsertOptions
	var licenseDate, expertName, expertPhone, expertEmail string
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Create or update a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Name = args[0]
			if licenseDate != "" {
				t, err := dates.Validate(licenseDate)
				if err != nil {
					return err
				}
				opts.LicenseDate = &t
			}
			if expertName != "" || expertPhone != "" || expertEmail != "" {
				opts.Expert = &domain.ExpertContact{
					Name:  expertName,
					Phone: expertPhone,
					Email: expertEmail,
				}
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				p, created, err := s.eng.UpsertProject(opts)
				if err != nil {
					return err
				}
				if err := s.save(ctx); err != nil {
					return err
				}
				if created {
					s.log.Info("project created", logger.String("name", p.Name))
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Company, "company", "", "license holder company")
	cmd.Flags().StringVar(&opts.Parent, "parent", "", "parent company")
	cmd.Flags().StringVar(&opts.LicenseNo, "license-no", "", "license number")
	cmd.Flags().StringVar(&licenseDate, "license-date", "", "license date (DD.MM.YYYY or YYYY-MM-DD)")
	cmd.Flags().StringVar(&expertName, "expert-name", "", "responsible expert name")
	cmd.Flags().StringVar(&expertPhone, "expert-phone", "", "responsible expert phone")
	cmd.Flags().StringVar(&expertEmail, "expert-email", "", "responsible expert email")
	return cmd
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if viper.GetBool("json") {
					return printJSON(s.store.Projects)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Proje", "Şirket", "Lisans No", "Lisans Tarihi", "Uzman"})
				for _, p := range s.store.Projects {
					licenseDate := "-"
					if p.LicenseDate != nil {
						licenseDate = dates.Format(p.LicenseDate.Time)
					}
					expert := ""
					if p.Expert != nil {
						expert = p.Expert.Name
					}
					tw.AppendRow(table.Row{p.Name, p.Company, p.LicenseNo, licenseDate, expert})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}
