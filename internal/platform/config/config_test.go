package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

const testSessionSecret = "0123456789abcdef0123456789abcdef"

func load(t *testing.T, env map[string]string, opts ...Option) (Config, error) {
	t.Helper()
	base := []Option{WithEnvMap(env), WithoutSystemEnv(), WithEnvFile("")}
	return Load(context.Background(), append(base, opts...)...)
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := load(t, map[string]string{"SITE_SECURITY_SESSION_SECRET": testSessionSecret})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Store.Driver != StoreSQLite || cfg.Store.SQLitePath != defaultSQLitePath {
		t.Errorf("expected sqlite store by default, got %+v", cfg.Store)
	}
	if cfg.Security.AuthMode != AuthModeSession || cfg.Security.SessionTTL != defaultSessionTTL {
		t.Errorf("unexpected security defaults: %+v", cfg.Security)
	}
	if !cfg.Render.ProcessHeadings || !cfg.Render.ScriptingEnabled {
		t.Errorf("expected heading processing and scripting enabled by default, got %+v", cfg.Render)
	}
	if cfg.Render.AttachTimeout != defaultAttachTimeout {
		t.Errorf("unexpected attach timeout: %s", cfg.Render.AttachTimeout)
	}
	if cfg.RateLimits.ContactPerMinute != defaultContactPerMinute {
		t.Errorf("unexpected contact rate limit: %d", cfg.RateLimits.ContactPerMinute)
	}
	if !slices.Equal(cfg.Content.SupportedLocales, []string{"en"}) {
		t.Errorf("expected supported locales to default to [en], got %v", cfg.Content.SupportedLocales)
	}
	if cfg.PubSub.ContactTopic != defaultContactTopic {
		t.Errorf("unexpected contact topic: %s", cfg.PubSub.ContactTopic)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"SITE_SERVER_PORT":                       "9090",
		"SITE_SERVER_IDLE_TIMEOUT":               "2m",
		"SITE_SERVER_TRUST_PROXY":                "yes",
		"SITE_STORE_DRIVER":                      "Firestore",
		"SITE_FIREBASE_PROJECT_ID":               "review-prod",
		"SITE_STORAGE_MEDIA_BUCKET":              "review-media",
		"SITE_EMAIL_RESEND_API_KEY":              "sm://resend/api",
		"SITE_EMAIL_FROM":                        "site@example.com",
		"SITE_EMAIL_NOTIFY_TO":                   "ops@example.com, editor@example.com",
		"SITE_SECURITY_AUTH_MODE":                "both",
		"SITE_SECURITY_SESSION_SECRET":           "secret://session/key",
		"SITE_SECURITY_BOOTSTRAP_ADMIN_EMAIL":    "Owner@Example.com",
		"SITE_SECURITY_BOOTSTRAP_ADMIN_PASSWORD": "secret://bootstrap/password",
		"SITE_RENDER_PROCESS_HEADINGS":           "off",
		"SITE_RENDER_HANDLER_TIMEOUT":            "100ms",
		"SITE_CONTENT_LOCALES":                   "en, ja",
		"SITE_FIREBASE_ROLE_CLAIM":               "site_role",
		"SITE_FIREBASE_VERIFY_TIMEOUT":           "4s",
		"SITE_FIRESTORE_DIAL_TIMEOUT":            "7s",
		"SITE_SECURITY_SESSION_ISSUER":           "review-site-prod",
		"SITE_SERVER_HEALTH_CHECK_TIMEOUT":       "750ms",
		"SITE_STORAGE_SIGNER_KEY_FILE":           "/secrets/signer.json",
	}
	secrets := map[string]string{
		"secret://resend/api":         "re_123",
		"secret://session/key":        testSessionSecret,
		"secret://bootstrap/password": "hunter2hunter2",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", errors.New("unknown secret")
	})

	cfg, err := load(t, env, WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.IdleTimeout != 2*time.Minute || !cfg.Server.TrustProxy {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Store.Driver != StoreFirestore {
		t.Errorf("expected firestore driver, got %s", cfg.Store.Driver)
	}
	if cfg.Firestore.ProjectID != "review-prod" || cfg.PubSub.ProjectID != "review-prod" {
		t.Errorf("expected project ids to default to firebase project, got %s / %s", cfg.Firestore.ProjectID, cfg.PubSub.ProjectID)
	}
	if cfg.Email.ResendAPIKey != "re_123" {
		t.Errorf("expected resolved resend key, got %s", cfg.Email.ResendAPIKey)
	}
	if len(cfg.Email.NotifyTo) != 2 {
		t.Errorf("expected two notify recipients, got %v", cfg.Email.NotifyTo)
	}
	if cfg.Security.SessionSecret != testSessionSecret {
		t.Errorf("expected resolved session secret")
	}
	if cfg.Security.BootstrapAdminEmail != "owner@example.com" {
		t.Errorf("expected lower-cased bootstrap email, got %s", cfg.Security.BootstrapAdminEmail)
	}
	if !cfg.Security.SessionAuthEnabled() || !cfg.Security.FirebaseAuthEnabled() {
		t.Errorf("expected both auth modes enabled")
	}
	if cfg.Render.ProcessHeadings {
		t.Errorf("expected heading processing disabled")
	}
	if cfg.Render.HandlerTimeout != 100*time.Millisecond {
		t.Errorf("unexpected handler timeout: %s", cfg.Render.HandlerTimeout)
	}
	if !slices.Equal(cfg.Content.SupportedLocales, []string{"en", "ja"}) {
		t.Errorf("unexpected locales: %v", cfg.Content.SupportedLocales)
	}
	if cfg.Firebase.RoleClaim != "site_role" || cfg.Firebase.VerifyTimeout != 4*time.Second {
		t.Errorf("unexpected firebase config: %+v", cfg.Firebase)
	}
	if cfg.Firestore.DialTimeout != 7*time.Second {
		t.Errorf("unexpected firestore dial timeout: %s", cfg.Firestore.DialTimeout)
	}
	if cfg.Security.SessionIssuer != "review-site-prod" {
		t.Errorf("unexpected session issuer: %s", cfg.Security.SessionIssuer)
	}
	if cfg.Server.HealthCheckTimeout != 750*time.Millisecond {
		t.Errorf("unexpected health check timeout: %s", cfg.Server.HealthCheckTimeout)
	}
	if cfg.Storage.SignerKeyFile != "/secrets/signer.json" {
		t.Errorf("unexpected signer key file: %s", cfg.Storage.SignerKeyFile)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	env := map[string]string{
		"SITE_STORE_DRIVER":          "postgres",
		"SITE_SECURITY_AUTH_MODE":    "firebase",
		"SITE_RENDER_ATTACH_TIMEOUT": "0s",
	}
	_, err := load(t, env)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := vErr.Fields()
	for _, want := range []string{"Store.Driver", "Firebase.ProjectID", "Render.AttachTimeout"} {
		if !slices.Contains(fields, want) {
			t.Errorf("expected %s in %v", want, fields)
		}
	}
	if slices.Contains(fields, "Security.SessionSecret") {
		t.Errorf("session secret must not be required in firebase mode: %v", fields)
	}
}

func TestLoadRejectsShortSessionSecret(t *testing.T) {
	_, err := load(t, map[string]string{"SITE_SECURITY_SESSION_SECRET": "short"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || !slices.Contains(vErr.Fields(), "Security.SessionSecret") {
		t.Fatalf("expected session secret validation error, got %v", err)
	}
}

func TestLoadRequiresBootstrapPair(t *testing.T) {
	_, err := load(t, map[string]string{
		"SITE_SECURITY_SESSION_SECRET":        testSessionSecret,
		"SITE_SECURITY_BOOTSTRAP_ADMIN_EMAIL": "owner@example.com",
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || !slices.Contains(vErr.Fields(), "Security.BootstrapAdmin") {
		t.Fatalf("expected bootstrap validation error, got %v", err)
	}
}

func TestLoadSecretWithoutResolver(t *testing.T) {
	_, err := load(t, map[string]string{"SITE_SECURITY_SESSION_SECRET": "secret://session/key"})
	var sErr *SecretError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if sErr.Ref != "secret://session/key" || !errors.Is(err, errSecretResolverNotConfigured) {
		t.Fatalf("unexpected secret error: %v", sErr)
	}
}

func TestLoadRequiredSecrets(t *testing.T) {
	_, err := load(t,
		map[string]string{"SITE_SECURITY_SESSION_SECRET": testSessionSecret},
		WithRequiredSecrets("Security.SessionSecret", "Email.ResendAPIKey", "Email.ResendAPIKey"),
	)
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	if names := missing.Names(); !slices.Equal(names, []string{"Email.ResendAPIKey"}) {
		t.Fatalf("unexpected missing names: %v", names)
	}
	redacted := missing.RedactedNames()
	if len(redacted) != 1 || redacted[0] == "Email.ResendAPIKey" || len(redacted[0]) != 16 {
		t.Fatalf("expected redacted hash, got %v", redacted)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local settings\nexport SITE_SERVER_PORT=7070\nSITE_SECURITY_SESSION_SECRET=\"" + testSessionSecret + "\"\nSITE_CONTENT_SEED_DIR='content'\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(path), WithoutSystemEnv(), WithEnvMap(map[string]string{"SITE_SERVER_PORT": "6060"}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("expected env map to override dotenv, got %s", cfg.Server.Port)
	}
	if cfg.Content.SeedDir != "content" {
		t.Errorf("expected seed dir from dotenv, got %q", cfg.Content.SeedDir)
	}
}

func TestLoadMissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvFile(filepath.Join(t.TempDir(), "missing.env")),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"SITE_SECURITY_SESSION_SECRET": testSessionSecret}),
	)
	if err != nil {
		t.Fatalf("expected missing dotenv to be ignored, got %v", err)
	}
}
