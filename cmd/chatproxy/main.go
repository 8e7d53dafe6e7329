package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/chatproxy/internal/chatproxy"
	"github.com/efebarandurmaz/chatproxy/internal/config"
	"github.com/efebarandurmaz/chatproxy/internal/llm"
	"github.com/efebarandurmaz/chatproxy/internal/llm/openai"
	"github.com/efebarandurmaz/chatproxy/internal/observability"
	"github.com/efebarandurmaz/chatproxy/internal/relay"
	"github.com/efebarandurmaz/chatproxy/internal/server"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "chatproxy",
		Short:        "Send chat messages through a backend proxy, or run the proxy",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (optional)")

	var (
		model      string
		backendURL string
	)
	sendCmd := &cobra.Command{
		Use:   "send <message...>",
		Short: "Send one message to the backend and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if backendURL != "" {
				cfg.Backend.URL = backendURL
			}
			return runSend(cmd, cfg, strings.Join(args, " "), model)
		},
	}
	sendCmd.Flags().StringVar(&model, "model", "", "Model id (default from config, then "+chatproxy.DefaultModel+")")
	sendCmd.Flags().StringVar(&backendURL, "backend", "", "Backend base URL (overrides config)")

	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay that answers /openai/chat/completions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Relay.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List upstream providers the relay can use",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			names := make([]string, 0, len(llm.KnownProviders))
			for name := range llm.KnownProviders {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  %-12s %s\n", name, llm.KnownProviders[name])
			}
			fmt.Fprintln(out, "  custom       (set relay.base_url to any OpenAI-compatible endpoint)")
			fmt.Fprintln(out, "  echo         (reply with the user's message, no upstream)")
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	rootCmd.AddCommand(sendCmd, serveCmd, providersCmd, versionCmd)
	return rootCmd
}

func runSend(cmd *cobra.Command, cfg *config.Config, message, model string) error {
	log := observability.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)

	client := chatproxy.New(cfg.Backend.URL,
		chatproxy.WithDefaultModel(cfg.Backend.Model),
		chatproxy.WithLogger(log),
	)
	reply, err := client.SendMessage(cmd.Context(), message, model)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}

func newProviderFactory() *llm.ProviderFactory {
	factory := llm.NewFactory()
	for name, url := range llm.KnownProviders {
		url := url
		factory.Register(name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = url
			}
			return openai.New(c.APIKey, c.Model, base), nil
		})
	}
	factory.Register("custom", func(c llm.ProviderConfig) (llm.Provider, error) {
		if c.BaseURL == "" {
			return nil, fmt.Errorf("custom provider requires base_url")
		}
		return openai.New(c.APIKey, c.Model, c.BaseURL), nil
	})
	return factory
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	provider, err := newProviderFactory().Create(llm.ProviderConfig{
		Provider: cfg.Relay.Provider,
		APIKey:   cfg.Relay.APIKey,
		Model:    cfg.Relay.Model,
		BaseURL:  cfg.Relay.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	log.Info("relay provider ready", "provider", provider.Name(), "model", cfg.Relay.Model)

	shutdownCfg := server.DefaultShutdownConfig()
	shutdownCfg.Logger = log
	srv := server.NewGracefulServer(version, shutdownCfg)
	srv.Health.RegisterCheck("provider", server.ProviderHealthChecker(provider.Name(), nil))
	srv.RegisterHook("tracing", server.PriorityTracing, tp.Shutdown)
	relay.New(provider, log).Routes(srv.Health.Mux())

	if _, err := srv.Start(cfg.Relay.Addr); err != nil {
		return err
	}
	srv.Wait()
	log.Info("relay stopped")
	return nil
}
