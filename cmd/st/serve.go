package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"suretakip/internal/assistant"
	"suretakip/internal/config"
	"suretakip/internal/db"
	"suretakip/internal/domain"
	"suretakip/internal/events"
	"suretakip/internal/logger"
	"suretakip/internal/migrate"
	"suretakip/internal/repo"
	"suretakip/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the document API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.ServerFromEnv()
			cfg.Workspace = viper.GetString("workspace")
			if cmd.Flags().Changed("addr") {
				cfg.ListenAddr = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.BasePath = basePath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel, true)
			defer log.Sync()

			conn, err := db.Open(db.Config{Workspace: cfg.Workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}

			var rdb *redis.Client
			if cfg.RedisAddr != "" {
				rdb = redis.NewClient(&redis.Options{
					Addr:     cfg.RedisAddr,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				})
				defer rdb.Close()
			}
			notifier := server.NewNotifier(rdb, log)
			notifier.Run(cmd.Context())

			handler, err := server.New(server.Config{
				DB:     conn,
				Repo:   repo.Repo{DB: conn},
				Events: events.Writer{DB: conn},
				Log:    log,
				Auth: server.AuthConfig{
					JWTSecret: cfg.JWTSecret,
					TokenTTL:  cfg.TokenTTL,
				},
				BasePath:     cfg.BasePath,
				WatchTimeout: cfg.WatchTimeout,
				Notifier:     notifier,
				Assistant:    assistant.New(cfg.OpenAIKey, cfg.OpenAIModel, log),
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Süre Takip API on http://%s%s\n", cfg.ListenAddr, cfg.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8484", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// withServerRepo opens the server-side database for admin commands.
func withServerRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage server sign-in accounts",
	}
	var email, password string
	set := &cobra.Command{
		Use:   "set",
		Short: "Create or reset an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServerRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.UpsertAccount(ctx, email, password)
			})
		},
	}
	set.Flags().StringVar(&email, "email", "", "account email")
	set.Flags().StringVar(&password, "password", "", "account password")
	_ = set.MarkFlagRequired("email")
	_ = set.MarkFlagRequired("password")
	cmd.AddCommand(set)
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage server API keys",
	}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyDeleteCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the plain key is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				actorID = actor()
			}
			if actorID == "" {
				return fmt.Errorf("--for required")
			}
			plain := "st_" + strings.ReplaceAll(uuid.NewString(), "-", "")
			key := repo.APIKey{
				ID:        domain.NewID(),
				ActorID:   actorID,
				Name:      name,
				KeyHash:   repo.HashAPIKey(plain),
				CreatedAt: time.Now().UTC().Format(time.RFC3339),
			}
			return withServerRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "key": plain})
				}
				fmt.Println(plain)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "for", "", "acting user's email the key maps to")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServerRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "for", "", "filter by actor email")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServerRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}
