package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func requireClient(s *session) error {
	if s.client == nil {
		return fmt.Errorf("sunucu tanımlı değil; --server veya ST_SERVER_URL gerekli")
	}
	return nil
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push or pull the shared document",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "push",
		Short: "Push the local working copy to the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if err := requireClient(s); err != nil {
					return err
				}
				if err := s.bridge.Save(ctx); err != nil {
					return err
				}
				fmt.Println("gönderildi")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "pull",
		Short: "Replace the local working copy with the server's document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if err := requireClient(s); err != nil {
					return err
				}
				// withSession already loaded from the server; persist it.
				if err := s.cache.SaveCollections(s.store.Obligations, s.store.Jobs, s.store.Projects, s.bridge.LastApplied()); err != nil {
					return err
				}
				fmt.Printf("%d yükümlülük, %d iş alındı\n", len(s.store.Obligations), len(s.store.Jobs))
				return nil
			})
		},
	})
	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the shared document live",
		Long:  "Long-polls the server and prints every update another team member saves. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if err := requireClient(s); err != nil {
					return err
				}
				s.store.OnRefresh(func() {
					fmt.Printf("güncellendi: %d yükümlülük, %d iş (lastUpdate=%s)\n",
						len(s.store.Obligations), len(s.store.Jobs), s.bridge.LastApplied().Format("15:04:05"))
				})
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()
				stop := s.bridge.Subscribe(ctx)
				defer stop()

				sig := make(chan os.Signal, 1)
				signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
				defer signal.Stop(sig)
				fmt.Println("izleniyor, çıkmak için Ctrl+C")
				select {
				case <-sig:
				case <-ctx.Done():
				}
				return nil
			})
		},
	}
	return cmd
}

func tokenCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain a bearer token from the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			if client == nil {
				return fmt.Errorf("sunucu tanımlı değil; --server veya ST_SERVER_URL gerekli")
			}
			token, err := client.Token(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]string{"token": token})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
