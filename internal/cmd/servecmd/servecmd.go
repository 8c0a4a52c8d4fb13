package servecmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/ff/v4"

	"github.com/fieldworks-labs/trackmock/internal/cmd/rootcmd"
	"github.com/fieldworks-labs/trackmock/pkg/tracksim"
)

const defaultListen = "127.0.0.1:8089"

type Config struct {
	*rootcmd.RootConfig
	Command *ff.Command
	Flags   *ff.FlagSet

	configPath *string
	dataset    *string
	listen     *string
	apiKey     *string
	noAuth     *bool
	latency    *time.Duration
}

func New(parent *rootcmd.RootConfig) *Config {
	cfg := &Config{RootConfig: parent}
	cfg.Flags = ff.NewFlagSet("serve").SetParent(parent.Flags)

	cfg.configPath = cfg.Flags.String('c', "config", "", "simulator TOML configuration file")
	cfg.dataset = cfg.Flags.StringLong("dataset", "", "dataset file (overrides the configuration)")
	cfg.listen = cfg.Flags.StringLong("listen", "", "listen address (overrides the configuration)")
	cfg.apiKey = cfg.Flags.StringLong("api-key", "", "api key clients must present (overrides the configuration)")
	cfg.noAuth = cfg.Flags.BoolLong("no-auth", "serve without requiring an api key")
	cfg.latency = cfg.Flags.DurationLong("latency", 0, "artificial delay before each response")

	cfg.Command = &ff.Command{
		Name:      "serve",
		Usage:     "trackmock serve [FLAGS]",
		ShortHelp: "Serve a simulated Hardware Tracker until interrupted.",
		Flags:     cfg.Flags,
		Exec:      cfg.Exec,
	}

	parent.Command.Subcommands = append(parent.Command.Subcommands, cfg.Command)
	return cfg
}

// options captures the flag values that shape the served simulator.
type options struct {
	configPath string
	dataset    string
	listen     string
	apiKey     string
	noAuth     bool
	latency    time.Duration
}

// resolve merges flags over the optional configuration file. Flags win.
// Unless -no-auth is given, a missing api key is replaced with a generated
// one; the second return value carries it so the caller can announce it.
func resolve(opts options) (*tracksim.Config, string, error) {
	cfg := &tracksim.Config{}
	if opts.configPath != "" {
		loaded, err := tracksim.LoadConfig(opts.configPath)
		if err != nil {
			return nil, "", err
		}
		cfg = loaded
	}
	if opts.dataset != "" {
		cfg.Dataset.Path = opts.dataset
	}
	if opts.listen != "" {
		cfg.Server.Listen = opts.listen
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaultListen
	}
	if opts.apiKey != "" {
		cfg.Server.APIKey = opts.apiKey
	}
	if opts.latency > 0 {
		cfg.Server.Latency = tracksim.Duration(opts.latency)
	}

	generated := ""
	if opts.noAuth {
		cfg.Server.APIKey = ""
	} else if cfg.Server.APIKey == "" {
		generated = uuid.NewString()
		cfg.Server.APIKey = generated
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	if cfg.Dataset.Path == "" {
		return nil, "", errors.New("dataset.path is required (use --dataset or set it in the config file)")
	}
	return cfg, generated, nil
}

func (cfg *Config) Exec(ctx context.Context, _ []string) error {
	simCfg, generated, err := resolve(options{
		configPath: *cfg.configPath,
		dataset:    *cfg.dataset,
		listen:     *cfg.listen,
		apiKey:     *cfg.apiKey,
		noAuth:     *cfg.noAuth,
		latency:    *cfg.latency,
	})
	if err != nil {
		return err
	}

	logger := cfg.Logger()
	if generated != "" {
		logger.Info("Generated api key.", slog.String("key", generated))
	}

	sim, stop, err := tracksim.StartServer(ctx, simCfg, tracksim.WithLogger(logger))
	if err != nil {
		return err
	}

	logger.Info("Serving simulated tracker.",
		slog.String("url", "http://"+sim.Addr()),
		slog.Bool("auth", simCfg.Server.APIKey != ""))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return stop(stopCtx)
}
