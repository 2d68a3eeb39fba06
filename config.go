package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"biowordle/internal/dictionary"
)

type Config struct {
	bind              string
	port              int
	wordsPath         string
	acceptedPath      string
	store             string
	dataDir           string
	dbPath            string
	dictionaryURL     string
	dictionaryTimeout time.Duration
	dictionaryCache   int
	sessionTimeout    time.Duration
	cookieMaxAge      time.Duration
	staticCacheAge    time.Duration
	rateLimitRPS      int
	rateLimitBurst    int
	production        bool
	verbose           bool
	version           bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.wordsPath == "" {
		return errors.New("--words must point to a word schedule")
	}
	switch c.store {
	case StoreMemory:
	case StoreFile:
		if c.dataDir == "" {
			return errors.New("--data-dir is required with --store=file")
		}
	case StoreSQLite:
		if c.dbPath == "" {
			return errors.New("--db is required with --store=sqlite")
		}
	default:
		return fmt.Errorf("invalid store %q (must be one of memory, file, sqlite)", c.store)
	}
	if c.rateLimitRPS < 1 {
		return fmt.Errorf("invalid rate limit (must be at least 1 request per second): %d", c.rateLimitRPS)
	}
	if c.rateLimitBurst < 1 {
		return fmt.Errorf("invalid rate limit burst (must be at least 1): %d", c.rateLimitBurst)
	}
	if c.sessionTimeout <= 0 {
		return fmt.Errorf("invalid session timeout: %v", c.sessionTimeout)
	}
	if c.cookieMaxAge < time.Minute {
		return fmt.Errorf("invalid cookie max age (must be at least 1m): %v", c.cookieMaxAge)
	}
	return nil
}

func (c *Config) addr() string {
	return fmt.Sprintf("%s:%d", c.bind, c.port)
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BIOWORDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "biowordle",
		Short:         "Serves one daily word-guessing game per player.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: BIOWORDLE_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: BIOWORDLE_PORT)")
	fs.StringVar(&cfg.wordsPath, "words", "data/words.json", "word schedule, .json or .yaml (env: BIOWORDLE_WORDS)")
	fs.StringVar(&cfg.acceptedPath, "accepted-words", "data/accepted_words.txt", "extra accepted guesses, empty to disable (env: BIOWORDLE_ACCEPTED_WORDS)")
	fs.StringVar(&cfg.store, "store", StoreMemory, "where saved games live: memory, file or sqlite (env: BIOWORDLE_STORE)")
	fs.StringVar(&cfg.dataDir, "data-dir", "data/sessions", "directory for --store=file (env: BIOWORDLE_DATA_DIR)")
	fs.StringVar(&cfg.dbPath, "db", "data/biowordle.db", "database for --store=sqlite (env: BIOWORDLE_DB)")
	fs.StringVar(&cfg.dictionaryURL, "dictionary-url", dictionary.DefaultBaseURL, "dictionary lookup endpoint, empty to disable (env: BIOWORDLE_DICTIONARY_URL)")
	fs.DurationVar(&cfg.dictionaryTimeout, "dictionary-timeout", dictionary.DefaultTimeout, "timeout for one dictionary lookup (env: BIOWORDLE_DICTIONARY_TIMEOUT)")
	fs.IntVar(&cfg.dictionaryCache, "dictionary-cache-size", dictionary.DefaultCacheSize, "number of dictionary answers kept in memory (env: BIOWORDLE_DICTIONARY_CACHE_SIZE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 2*time.Hour, "time before idle sessions are dropped (env: BIOWORDLE_SESSION_TIMEOUT)")
	fs.DurationVar(&cfg.cookieMaxAge, "cookie-max-age", 24*time.Hour, "lifetime of the player cookie (env: BIOWORDLE_COOKIE_MAX_AGE)")
	fs.DurationVar(&cfg.staticCacheAge, "static-cache-age", 5*time.Minute, "cache lifetime for static responses in production (env: BIOWORDLE_STATIC_CACHE_AGE)")
	fs.IntVar(&cfg.rateLimitRPS, "rate-limit-rps", 5, "requests per second per client on game routes (env: BIOWORDLE_RATE_LIMIT_RPS)")
	fs.IntVar(&cfg.rateLimitBurst, "rate-limit-burst", 10, "burst size per client on game routes (env: BIOWORDLE_RATE_LIMIT_BURST)")
	fs.BoolVar(&cfg.production, "production", false, "enable production mode (env: BIOWORDLE_PRODUCTION)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: BIOWORDLE_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: BIOWORDLE_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("biowordle v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
