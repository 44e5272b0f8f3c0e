package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"companion-ai/internal/bootstrap"
	"companion-ai/internal/config"
	"companion-ai/internal/pkg/docdecode"
	"companion-ai/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		provider string
		delay    time.Duration
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "companion-chat",
		Short: "Chat with Companion AI in the terminal",
		Long: "Runs one local chat session. Type a message, or use /attach <path>, " +
			"/detach <name|number>, /list and /quit.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("provider") {
				cfg.LLM.Provider = provider
			}
			if cmd.Flags().Changed("delay") {
				cfg.Session.StubDelay = config.Duration{Duration: delay}
			}

			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				Level(level).With().Timestamp().Logger()

			generator, err := bootstrap.NewGenerator(cfg, log)
			if err != nil {
				return err
			}
			// A local terminal user is treated as signed in.
			ctrl, err := session.New(session.Options{
				ID:              "terminal",
				Authenticated:   true,
				Generator:       generator,
				Decoder:         docdecode.New(cfg.Session.MaxDocumentChars),
				ResponseTimeout: cfg.Session.ResponseTimeout.Duration,
				HistoryLimit:    cfg.Session.HistoryLimit,
				Greeting:        cfg.Session.Greeting,
				Logger:          log,
			})
			if err != nil {
				return err
			}

			r := newREPL(ctrl, cmd.InOrStdin(), cmd.OutOrStdout())
			r.maxUploadBytes = cfg.Session.MaxUploadBytes
			return r.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "reply backend: stub or openai")
	cmd.Flags().DurationVar(&delay, "delay", time.Second, "stub reply delay")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log engine activity to stderr")
	return cmd
}
