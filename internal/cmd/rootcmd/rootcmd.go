package rootcmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

type RootConfig struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Flags   *ff.FlagSet
	Command *ff.Command

	loggerOnce sync.Once
	logger     *slog.Logger
}

func New(stdin io.Reader, stdout, stderr io.Writer) *RootConfig {
	cfg := &RootConfig{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}

	cfg.Flags = ff.NewFlagSet("trackmock")

	cfg.Command = &ff.Command{
		Name:      "trackmock",
		Usage:     "trackmock <SUBCOMMAND> ...",
		ShortHelp: "Hardware Tracker simulator commands.",
		Flags:     cfg.Flags,
		Exec:      cfg.exec,
	}

	return cfg
}

func (cfg *RootConfig) exec(_ context.Context, args []string) error {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(cfg.Stdout, ffhelp.Command(cfg.Command))
		return ff.ErrHelp
	}
	return errors.New("missing command")
}

func (cfg *RootConfig) Logger() *slog.Logger {
	cfg.loggerOnce.Do(func() {
		handler := slog.NewTextHandler(cfg.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
		cfg.logger = slog.New(handler)
	})
	return cfg.logger
}
