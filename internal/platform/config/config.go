package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	envPrefix      = "SITE_"
	defaultEnvFile = ".env"

	defaultPort            = "8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 20 * time.Second

	defaultSQLitePath     = "site.db"
	defaultContactTopic   = "contact-submitted"
	defaultSignedURLTTL   = 15 * time.Minute
	defaultMaxUploadBytes = 10 << 20
	defaultMediaMaxWidth  = 1600
	defaultThumbWidth     = 480

	defaultSessionTTL     = 12 * time.Hour
	defaultAttachTimeout  = 2 * time.Second
	defaultHandlerTimeout = 250 * time.Millisecond
	defaultRenderCacheTTL = 5 * time.Minute

	defaultContactPerMinute = 5
	defaultLoginPerMinute   = 10

	defaultLocale = "en"
)

// Store drivers.
const (
	StoreFirestore = "firestore"
	StoreSQLite    = "sqlite"
)

// Admin authentication modes.
const (
	AuthModeSession  = "session"
	AuthModeFirebase = "firebase"
	AuthModeBoth     = "both"
)

// Config is the full runtime configuration, grouped by concern.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Firebase   FirebaseConfig
	Firestore  FirestoreConfig
	Storage    StorageConfig
	PubSub     PubSubConfig
	Email      EmailConfig
	Security   SecurityConfig
	Render     RenderConfig
	RateLimits RateLimitConfig
	Content    ContentConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// TrustProxy makes the client IP come from X-Forwarded-For.
	TrustProxy bool
	LogLevel   string
	// HealthCheckTimeout bounds readiness probes that set no timeout of their own.
	HealthCheckTimeout time.Duration
}

// StoreConfig selects the repository backend.
type StoreConfig struct {
	Driver     string
	SQLitePath string
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	// RoleClaim is the custom claim carrying an editor's role.
	RoleClaim     string
	VerifyTimeout time.Duration
}

type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
	DialTimeout  time.Duration
}

// StorageConfig configures media uploads. An empty MediaBucket disables the media endpoints.
type StorageConfig struct {
	MediaBucket string
	// SignerKeyFile is a service account JSON key used to sign upload URLs locally. It takes
	// precedence over SignerEmail, which signs through the IAM Credentials API.
	SignerKeyFile  string
	SignerEmail    string
	PublicBaseURL  string
	SignedURLTTL   time.Duration
	MaxUploadBytes int64
	MaxWidth       int
	ThumbWidth     int
}

// PubSubConfig configures the contact event topic. An empty ProjectID disables publishing.
type PubSubConfig struct {
	ProjectID    string
	ContactTopic string
	EmulatorHost string
}

// EmailConfig configures contact notifications via Resend.
type EmailConfig struct {
	ResendAPIKey string
	From         string
	NotifyTo     []string
}

type SecurityConfig struct {
	Environment            string
	AuthMode               string
	SessionSecret          string
	SessionTTL             time.Duration
	SessionIssuer          string
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// RenderConfig drives the saved-content renderer used by previews and public delivery.
type RenderConfig struct {
	ProcessHeadings  bool
	ScriptingEnabled bool
	AttachTimeout    time.Duration
	HandlerTimeout   time.Duration
	CacheTTL         time.Duration
}

type RateLimitConfig struct {
	ContactPerMinute int
	LoginPerMinute   int
}

type ContentConfig struct {
	SeedDir          string
	Watch            bool
	DefaultLocale    string
	SupportedLocales []string
}

// SecretResolver resolves secret:// references (sm:// is accepted as an alias).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

type SecretResolverFunc func(context.Context, string) (string, error)

func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// Option customises Load.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile sets the dotenv file consulted before the process environment. "" disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap supplies values that take precedence over every other source.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets fails Load when any of the named secret fields (e.g.
// "Security.SessionSecret") resolves to an empty value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// EnvironmentValues returns the merged key/value environment (dotenv < OS < explicit map)
// so callers can build the secret fetcher from the same inputs before calling Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)
	values, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = make(map[string]string)
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if ok && strings.TrimSpace(key) != "" {
				values[strings.TrimSpace(key)] = value
			}
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

// Load assembles the configuration: defaults, then the dotenv file, the process
// environment and finally WithEnvMap values. Secret references are resolved last.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	values, err := EnvironmentValues(opts...)
	if err != nil {
		return Config{}, err
	}
	env := source(values)

	cfg := Config{
		Server: ServerConfig{
			Port:               env.str("SERVER_PORT", defaultPort),
			ReadTimeout:        env.duration("SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:       env.duration("SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:        env.duration("SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout:    env.duration("SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
			TrustProxy:         env.boolean("SERVER_TRUST_PROXY", false),
			LogLevel:           env.str("LOG_LEVEL", ""),
			HealthCheckTimeout: env.duration("SERVER_HEALTH_CHECK_TIMEOUT", 0),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(env.str("STORE_DRIVER", StoreSQLite)),
			SQLitePath: env.str("STORE_SQLITE_PATH", defaultSQLitePath),
		},
		Firebase: FirebaseConfig{
			ProjectID:       env.str("FIREBASE_PROJECT_ID", ""),
			CredentialsFile: env.str("FIREBASE_CREDENTIALS_FILE", ""),
			RoleClaim:       env.str("FIREBASE_ROLE_CLAIM", ""),
			VerifyTimeout:   env.duration("FIREBASE_VERIFY_TIMEOUT", 0),
		},
		Firestore: FirestoreConfig{
			ProjectID:    env.str("FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: env.str("FIRESTORE_EMULATOR_HOST", ""),
			DialTimeout:  env.duration("FIRESTORE_DIAL_TIMEOUT", 0),
		},
		Storage: StorageConfig{
			MediaBucket:    env.str("STORAGE_MEDIA_BUCKET", ""),
			SignerKeyFile:  env.str("STORAGE_SIGNER_KEY_FILE", ""),
			SignerEmail:    env.str("STORAGE_SIGNER_EMAIL", ""),
			PublicBaseURL:  strings.TrimRight(env.str("STORAGE_PUBLIC_BASE_URL", ""), "/"),
			SignedURLTTL:   env.duration("STORAGE_SIGNED_URL_TTL", defaultSignedURLTTL),
			MaxUploadBytes: int64(env.integer("STORAGE_MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
			MaxWidth:       env.integer("STORAGE_MAX_WIDTH", defaultMediaMaxWidth),
			ThumbWidth:     env.integer("STORAGE_THUMB_WIDTH", defaultThumbWidth),
		},
		PubSub: PubSubConfig{
			ProjectID:    env.str("PUBSUB_PROJECT_ID", ""),
			ContactTopic: env.str("PUBSUB_CONTACT_TOPIC", defaultContactTopic),
			EmulatorHost: env.str("PUBSUB_EMULATOR_HOST", ""),
		},
		Email: EmailConfig{
			ResendAPIKey: env.str("EMAIL_RESEND_API_KEY", ""),
			From:         env.str("EMAIL_FROM", ""),
			NotifyTo:     env.list("EMAIL_NOTIFY_TO"),
		},
		Security: SecurityConfig{
			Environment:            strings.ToLower(env.str("SECURITY_ENVIRONMENT", "local")),
			AuthMode:               strings.ToLower(env.str("SECURITY_AUTH_MODE", AuthModeSession)),
			SessionSecret:          env.str("SECURITY_SESSION_SECRET", ""),
			SessionTTL:             env.duration("SECURITY_SESSION_TTL", defaultSessionTTL),
			SessionIssuer:          env.str("SECURITY_SESSION_ISSUER", ""),
			BootstrapAdminEmail:    strings.ToLower(env.str("SECURITY_BOOTSTRAP_ADMIN_EMAIL", "")),
			BootstrapAdminPassword: env.str("SECURITY_BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
		Render: RenderConfig{
			ProcessHeadings:  env.boolean("RENDER_PROCESS_HEADINGS", true),
			ScriptingEnabled: env.boolean("RENDER_SCRIPTING_ENABLED", true),
			AttachTimeout:    env.duration("RENDER_ATTACH_TIMEOUT", defaultAttachTimeout),
			HandlerTimeout:   env.duration("RENDER_HANDLER_TIMEOUT", defaultHandlerTimeout),
			CacheTTL:         env.duration("RENDER_CACHE_TTL", defaultRenderCacheTTL),
		},
		RateLimits: RateLimitConfig{
			ContactPerMinute: env.integer("RATELIMIT_CONTACT_PER_MIN", defaultContactPerMinute),
			LoginPerMinute:   env.integer("RATELIMIT_LOGIN_PER_MIN", defaultLoginPerMinute),
		},
		Content: ContentConfig{
			SeedDir:          env.str("CONTENT_SEED_DIR", ""),
			Watch:            env.boolean("CONTENT_WATCH", false),
			DefaultLocale:    env.str("CONTENT_DEFAULT_LOCALE", defaultLocale),
			SupportedLocales: env.list("CONTENT_LOCALES"),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}
	if len(cfg.Content.SupportedLocales) == 0 {
		cfg.Content.SupportedLocales = []string{cfg.Content.DefaultLocale}
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Security.SessionSecret", &cfg.Security.SessionSecret},
		{"Security.BootstrapAdminPassword", &cfg.Security.BootstrapAdminPassword},
		{"Email.ResendAPIKey", &cfg.Email.ResendAPIKey},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

// SessionAuthEnabled reports whether email/password sessions are accepted.
func (c SecurityConfig) SessionAuthEnabled() bool {
	return c.AuthMode == AuthModeSession || c.AuthMode == AuthModeBoth
}

// FirebaseAuthEnabled reports whether Firebase ID tokens are accepted.
func (c SecurityConfig) FirebaseAuthEnabled() bool {
	return c.AuthMode == AuthModeFirebase || c.AuthMode == AuthModeBoth
}

func validate(cfg Config) error {
	var invalid []string
	add := func(field string) { invalid = append(invalid, field) }

	if cfg.Server.Port == "" {
		add("Server.Port")
	}
	switch cfg.Store.Driver {
	case StoreFirestore:
		if cfg.Firestore.ProjectID == "" {
			add("Firestore.ProjectID")
		}
	case StoreSQLite:
		if cfg.Store.SQLitePath == "" {
			add("Store.SQLitePath")
		}
	default:
		add("Store.Driver")
	}
	switch cfg.Security.AuthMode {
	case AuthModeSession, AuthModeFirebase, AuthModeBoth:
	default:
		add("Security.AuthMode")
	}
	if cfg.Security.SessionAuthEnabled() && len(cfg.Security.SessionSecret) < 32 {
		add("Security.SessionSecret")
	}
	if cfg.Security.FirebaseAuthEnabled() && cfg.Firebase.ProjectID == "" {
		add("Firebase.ProjectID")
	}
	if cfg.Security.SessionTTL <= 0 {
		add("Security.SessionTTL")
	}
	if (cfg.Security.BootstrapAdminEmail == "") != (cfg.Security.BootstrapAdminPassword == "") {
		add("Security.BootstrapAdmin")
	}
	if cfg.Render.AttachTimeout <= 0 {
		add("Render.AttachTimeout")
	}
	if cfg.Render.HandlerTimeout <= 0 {
		add("Render.HandlerTimeout")
	}
	if cfg.RateLimits.ContactPerMinute <= 0 {
		add("RateLimits.ContactPerMinute")
	}
	if cfg.RateLimits.LoginPerMinute <= 0 {
		add("RateLimits.LoginPerMinute")
	}
	if cfg.Email.ResendAPIKey != "" && (cfg.Email.From == "" || len(cfg.Email.NotifyTo) == 0) {
		add("Email.From/NotifyTo")
	}
	if cfg.Storage.MediaBucket != "" && cfg.Storage.MaxUploadBytes <= 0 {
		add("Storage.MaxUploadBytes")
	}
	if strings.TrimSpace(cfg.Content.DefaultLocale) == "" {
		add("Content.DefaultLocale")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

// Summary lists non-secret settings for the startup log line.
func (c Config) Summary() map[string]string {
	return map[string]string{
		"store":             c.Store.Driver,
		"auth_mode":         c.Security.AuthMode,
		"environment":       c.Security.Environment,
		"media_enabled":     fmt.Sprint(c.Storage.MediaBucket != ""),
		"pubsub_enabled":    fmt.Sprint(c.PubSub.ProjectID != ""),
		"email_enabled":     fmt.Sprint(c.Email.ResendAPIKey != ""),
		"scripting_enabled": fmt.Sprint(c.Render.ScriptingEnabled),
		"seed_dir":          c.Content.SeedDir,
	}
}
