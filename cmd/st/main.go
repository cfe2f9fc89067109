package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"suretakip/internal/cache"
	"suretakip/internal/config"
	"suretakip/internal/engine"
	"suretakip/internal/logger"
	"suretakip/internal/seed"
	"suretakip/internal/store"
	appsync "suretakip/internal/sync"
	suretakipsdk "suretakip/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "st",
	Short: "Süre Takip CLI",
	Long: `Süre Takip tracks licensing obligations and their deadlines for
renewable-energy projects. Obligations carry hard dates from the regulator;
jobs are the day-to-day work the team plans around them.

The working copy lives in this workspace. With --server (or ST_SERVER_URL)
set, every change is pushed to the shared document and 'st watch' follows
the team's updates live. Without a server the tool still works from the
local cache.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	env := config.ClientFromEnv()
	rootCmd.PersistentFlags().StringP("workspace", "w", env.Workspace, "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("server", env.ServerURL, "API server URL (empty for offline)")
	rootCmd.PersistentFlags().String("api-key", env.APIKey, "API key for the server")
	rootCmd.PersistentFlags().String("token", env.Token, "bearer token for the server")
	rootCmd.PersistentFlags().String("actor", env.Actor, "acting user's email")
	rootCmd.PersistentFlags().String("log-level", env.LogLevel, "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("api-key", rootCmd.PersistentFlags().Lookup("api-key"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(obligationCmd())
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(digestCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

// session bundles the working copy: the in-memory store loaded from the
// server (or cache, or seed), the cache underneath it, and the bridge
// when a server is configured.
type session struct {
	store  *store.Store
	cache  *cache.Cache
	eng    engine.Engine
	bridge *appsync.Bridge
	client *suretakipsdk.Client
	log    logger.Logger
}

func newClient() *suretakipsdk.Client {
	serverURL := strings.TrimSpace(viper.GetString("server"))
	if serverURL == "" {
		return nil
	}
	c := suretakipsdk.New(serverURL)
	c.APIKey = viper.GetString("api-key")
	c.BearerToken = viper.GetString("token")
	return c
}

func actor() string {
	return strings.TrimSpace(viper.GetString("actor"))
}

func withSession(ctx context.Context, fn func(context.Context, *session) error) error {
	log := logger.New(viper.GetString("log-level"), true)
	defer log.Sync()
	c, err := cache.Open(viper.GetString("workspace"), log)
	if err != nil {
		return err
	}
	st := store.New()
	s := &session{store: st, cache: c, eng: engine.New(st), log: log}
	if client := newClient(); client != nil {
		s.client = client
		s.bridge = appsync.New(client, st, c, log, actor())
		s.bridge.Load(ctx)
	} else {
		s.loadLocal()
	}
	return fn(ctx, s)
}

func (s *session) loadLocal() {
	if obligations, jobs, projects, _, ok := s.cache.LoadCollections(); ok {
		s.store.SetObligations(obligations)
		s.store.SetJobs(jobs)
		s.store.SetProjects(projects)
		return
	}
	obligations, projects, err := seed.Load(time.Now)
	if err != nil {
		s.log.Error("seed dataset unavailable", logger.Error(err))
		return
	}
	s.store.SetObligations(obligations)
	s.store.SetProjects(projects)
}

// save persists the working copy: cache plus server push when online.
func (s *session) save(ctx context.Context) error {
	if s.bridge != nil {
		return s.bridge.Save(ctx)
	}
	return s.cache.SaveCollections(s.store.Obligations, s.store.Jobs, s.store.Projects, time.Now())
}

// --- helpers ---

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
