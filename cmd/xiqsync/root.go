package main

import (
	"errors"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joshp123/xiqsync/internal/auth"
	"github.com/joshp123/xiqsync/internal/config"
	"github.com/joshp123/xiqsync/internal/rate"
	"github.com/joshp123/xiqsync/internal/store"
	"github.com/joshp123/xiqsync/internal/xiq"
)

var (
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "xiqsync",
	Short: "Mirror ExtremeCloud IQ access points and SSIDs into Redis",
	Long: `xiqsync pages through the ExtremeCloud IQ device inventory, keeps the
access points, collects their SSIDs and writes both to Redis with a
bounded lifetime.

Credentials are read from XIQ_USERNAME and XIQ_PASSWORD (a .env file in
the working directory is honoured).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("xiqsync: ")

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: ./xiqsync.yml)")
	flags.String("server", config.DefaultServer, "ExtremeCloud IQ API base URL")
	flags.String("token-file", config.DefaultTokenFile, "path of the bearer token file")
	flags.String("redis-url", config.DefaultRedisURL, "Redis connection URL")
	flags.Int("page-size", config.DefaultPageSize, "devices per page (max 100)")
	flags.Bool("force-login", false, "ignore the stored token and log in")
}

var flagKeys = map[string]string{
	"server":      "server",
	"token-file":  "token_file",
	"redis-url":   "redis_url",
	"page-size":   "page_size",
	"force-login": "force_login",
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("ignoring .env: %v", err)
	}

	var err error
	v, err = config.New(cfgFile)
	if err != nil {
		return err
	}
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}
	cfg, err = config.Load(v)
	return err
}

func credentialStore(cfg *config.Config) (auth.CredentialStore, error) {
	file := auth.NewFileStore(cfg.TokenFile)
	if !cfg.TokenMirror.Enabled() {
		return file, nil
	}
	mirror, err := auth.NewS3Store(cfg.TokenMirror)
	if err != nil {
		return nil, err
	}
	return auth.MirroredStore{Primary: file, Mirror: mirror}, nil
}

func newAuthenticator(cfg *config.Config) (*auth.Authenticator, error) {
	creds, err := credentialStore(cfg)
	if err != nil {
		return nil, err
	}
	return auth.NewAuthenticator(cfg.Server, creds)
}

func newClient(cfg *config.Config, token string) (*xiq.Client, error) {
	return xiq.NewClient(xiq.ClientConfig{
		BaseURL:     cfg.Server,
		Policy:      cfg.Policy,
		SSIDWorkers: cfg.SSIDWorkers,
	}, token)
}

func openStore(cmd *cobra.Command, cfg *config.Config) (*store.Store, error) {
	return store.Open(cmd.Context(), cfg.RedisURL, cfg.Policy.RecordTTL)
}

func hintFor(err error) string {
	var (
		cfgErr   *config.ConfigError
		authErr  *auth.AuthError
		rlErr    rate.RateLimitError
		storeErr *store.StoreError
	)
	switch {
	case errors.As(err, &cfgErr) && strings.HasPrefix(cfgErr.Field, "XIQ_"):
		return "export " + config.UsernameEnv + " and " + config.PasswordEnv + " or put them in .env"
	case errors.As(err, &cfgErr):
		return "check xiqsync.yml, XIQSYNC_* variables and flags"
	case errors.As(err, &authErr):
		return "verify the credentials; retry with --force-login"
	case errors.As(err, &rlErr):
		return "the API budget is exhausted; run 'xiqsync ratelimit' and retry later"
	case errors.As(err, &storeErr):
		return "check --redis-url and that Redis is reachable"
	}
	return ""
}
