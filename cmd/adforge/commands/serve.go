package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/adforge/adforge/cmd/adforge/internal/config"
	"github.com/adforge/adforge/pkg/adchat"
	"github.com/adforge/adforge/pkg/catalog"
	"github.com/adforge/adforge/pkg/genx"
	"github.com/adforge/adforge/pkg/kv"
	"github.com/adforge/adforge/pkg/server"
	"github.com/adforge/adforge/pkg/session"
	"github.com/adforge/adforge/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat and generation server",
	Long: `Run the adforge HTTP server.

Endpoints:
  POST /api/v1/auth/login   - exchange a token for a session
  POST /api/v1/auth/logout  - end a session
  GET  /ws/{identity}       - websocket chat channel`,
	RunE: runServe,
}

var serveListen string

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if IsVerbose() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := kv.OpenBadger(kv.BadgerOptions{Dir: cfg.DataDir, InMemory: cfg.DataDir == ""})
	if err != nil {
		return err
	}
	defer store.Close()

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		return err
	}

	archive, err := newArchive(cfg)
	if err != nil {
		return err
	}

	sessions := session.NewManager(store, newVerifier(cfg.Users), sessionTTL(cfg))
	hub := adchat.NewHub(sessions, gen, catalog.NewKV(store), archive, adchat.Config{
		ChatModel:       cfg.Models.Chat,
		ImageModel:      cfg.Models.Image,
		SuggestionLimit: cfg.Chat.SuggestionLimit,
		GenTimeout:      time.Duration(cfg.Chat.GenTimeoutSeconds) * time.Second,
		StoreTimeout:    time.Duration(cfg.Chat.StoreTimeoutSeconds) * time.Second,
		Retention:       time.Duration(cfg.Chat.RetentionSeconds) * time.Second,
	}, logger)

	addr := cfg.Listen
	if serveListen != "" {
		addr = serveListen
	}
	if addr == "" {
		addr = ":8080"
	}

	return server.New(hub, logger).ListenAndServe(ctx, addr)
}

func sessionTTL(cfg *config.Config) time.Duration {
	if cfg.SessionTTLSeconds > 0 {
		return time.Duration(cfg.SessionTTLSeconds) * time.Second
	}
	return session.DefaultTTL
}

func newGenerator(ctx context.Context, cfg *config.Config) (genx.Generator, error) {
	switch cfg.Provider {
	case "openai":
		opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAI.APIKey)}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		client := openai.NewClient(opts...)
		return &genx.OpenAIGenerator{
			Client:     &client,
			Model:      cfg.Models.Chat,
			ImageModel: cfg.Models.Image,
		}, nil
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.Gemini.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return &genx.GeminiGenerator{
			Client:     client,
			Model:      cfg.Models.Chat,
			ImageModel: cfg.Models.Image,
		}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newArchive(cfg *config.Config) (storage.Archive, error) {
	switch cfg.Archive.Backend {
	case "":
		return nil, nil
	case "local":
		dir := cfg.Archive.Dir
		if dir == "" {
			dir = "images"
		}
		return storage.NewLocal(dir)
	case "s3":
		client := s3.New(s3.Options{
			Region: cfg.Archive.Region,
			Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     cfg.Archive.AccessKey,
					SecretAccessKey: cfg.Archive.SecretKey,
				}, nil
			}),
			BaseEndpoint: nilIfEmpty(cfg.Archive.Endpoint),
		})
		return storage.NewS3(client, cfg.Archive.Bucket, cfg.Archive.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// newVerifier maps configured tokens to user records. Tokens are opaque
// strings; anything not in the list is unauthorized.
func newVerifier(users []config.UserConfig) session.Verifier {
	byToken := make(map[string]session.Record, len(users))
	for _, u := range users {
		byToken[u.Token] = session.Record{Name: u.Name, Email: u.Email, Identity: u.Identity}
	}
	return session.VerifierFunc(func(_ context.Context, token string) (session.Record, error) {
		rec, ok := byToken[token]
		if !ok {
			return session.Record{}, session.ErrUnauthorized
		}
		return rec, nil
	})
}
