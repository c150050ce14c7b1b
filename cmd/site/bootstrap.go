package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/Hoangthang194/review-agency-sub000/internal/platform/config"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/secrets"
	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

// loadConfig reads the environment, resolves secret references through Secret Manager (or
// the local fallback file) and validates the result. The fetcher stays open for readiness
// probes; callers close it.
func loadConfig(ctx context.Context, opts *rootOptions, logger *zap.Logger) (config.Config, *secrets.Fetcher, error) {
	envOpts := []config.Option{config.WithEnvFile(opts.envFile)}
	env, err := config.EnvironmentValues(envOpts...)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("read environment: %w", err)
	}

	fetcher, err := newSecretFetcher(ctx, logger, env)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("initialise secret fetcher: %w", err)
	}

	cfg, err := config.Load(ctx, append(envOpts,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(env)...),
	)...)
	if err != nil {
		_ = fetcher.Close()
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Error("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		return config.Config{}, nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, fetcher, nil
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string { return strings.TrimSpace(env[key]) }

	project := lookup("SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("FIREBASE_PROJECT_ID")
	}
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
	}
	if path := lookup("SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if ttl, err := time.ParseDuration(lookup("SECRET_CACHE_TTL")); err == nil && ttl > 0 {
		opts = append(opts, secrets.WithCacheTTL(ttl))
	}
	if file := lookup("FIREBASE_CREDENTIALS_FILE"); file != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(file)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the secret fields that must resolve for the configured mode.
func requiredSecretNames(env map[string]string) []string {
	mode := strings.ToLower(strings.TrimSpace(env["SECURITY_AUTH_MODE"]))
	var required []string
	if mode == "" || mode == config.AuthModeSession || mode == config.AuthModeBoth {
		required = append(required, "Security.SessionSecret")
	}
	if strings.TrimSpace(env["SECURITY_BOOTSTRAP_ADMIN_EMAIL"]) != "" {
		required = append(required, "Security.BootstrapAdminPassword")
	}
	return required
}

func buildVersion() string {
	if v := strings.TrimSpace(os.Getenv("SITE_BUILD_VERSION")); v != "" {
		return v
	}
	return "dev"
}

func buildInfo(cfg config.Config, started time.Time) services.BuildInfo {
	commit := strings.TrimSpace(os.Getenv("SITE_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     buildVersion(),
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}
