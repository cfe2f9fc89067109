package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"suretakip/internal/backup"
	"suretakip/internal/config"
	"suretakip/internal/exporter"
	"suretakip/internal/importer"
	"suretakip/internal/logger"
	"suretakip/internal/notify"
)

func importCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import obligations from CSV",
		Long:  "Replaces the obligations list with the spreadsheet's rows. Rows matching an existing obligation by project, type and deadline day keep their id, completion state and comments, so re-importing an updated sheet does not reset the team's work.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			result, err := importer.ParseCSV(f, time.Now)
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				merge := s.eng.MergeImport(result.Obligations)
				if err := s.save(ctx); err != nil {
					return err
				}
				fmt.Printf("%d yükümlülük içe aktarıldı (%d korundu, %d satır atlandı)\n",
					merge.Total, merge.Preserved, result.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "CSV file path")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export obligations to CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := exporter.WriteCSV(f, s.store.Obligations); err != nil {
					return err
				}
				fmt.Printf("%d yükümlülük dışa aktarıldı: %s\n", len(s.store.Obligations), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "sure_takip.csv", "output file path")
	return cmd
}

func backupCmd() *cobra.Command {
	var dir string
	var upload bool
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a JSON backup of obligations and jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if dir == "" {
					dir = filepath.Join(viper.GetString("workspace"), "yedekler")
				}
				path, err := backup.Write(dir, s.store.Obligations, s.store.Jobs, actor(), time.Now)
				if err != nil {
					return err
				}
				if err := s.cache.SetLastBackup(time.Now()); err != nil {
					s.log.Warn("last backup stamp not recorded", logger.Error(err))
				}
				if upload {
					cfg := config.ServerFromEnv()
					up, err := backup.NewUploader(backup.S3Config{
						Endpoint:  cfg.S3Endpoint,
						AccessKey: cfg.S3AccessKey,
						SecretKey: cfg.S3SecretKey,
						Bucket:    cfg.S3Bucket,
						Prefix:    cfg.S3Prefix,
						UseSSL:    cfg.S3UseSSL,
					})
					if err != nil {
						return err
					}
					if err := up.Upload(ctx, path); err != nil {
						return fmt.Errorf("yedek S3'e yüklenemedi: %w", err)
					}
				}
				fmt.Println("yedek yazıldı:", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "backup directory (default <workspace>/yedekler)")
	cmd.Flags().BoolVar(&upload, "upload", false, "also upload to S3 (ST_S3_* env)")
	return cmd
}

func digestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Show overdue, due-today and upcoming obligations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				now := time.Now()
				d := notify.Build(now, s.store.Obligations)
				if viper.GetBool("json") {
					return printJSON(d)
				}
				fmt.Println(d.Render(now))
				return nil
			})
		},
	}
	return cmd
}
