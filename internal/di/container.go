package di

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/Hoangthang194/review-agency-sub000/internal/cms"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/auth"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/config"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/email"
	pfirestore "github.com/Hoangthang194/review-agency-sub000/internal/platform/firestore"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/imaging"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/jobs"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/observability"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/secrets"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/storage"
	"github.com/Hoangthang194/review-agency-sub000/internal/render"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
	firestoreRepo "github.com/Hoangthang194/review-agency-sub000/internal/repositories/firestore"
	sqliteRepo "github.com/Hoangthang194/review-agency-sub000/internal/repositories/sqlite"
	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

const (
	storeCheckTimeout  = 1500 * time.Millisecond
	secretCheckTimeout = time.Second
	// Secret Manager answers NotFound for this reference when it is reachable.
	secretHealthReference = "secret://system/healthz?version=latest"
	localMediaDir         = "media"
	localMediaURL         = "/media"
)

var mediaContentTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Accounts services.AccountService
	Reviews  services.ReviewService
	Articles services.ArticleService
	Contacts services.ContactService
	Scripts  services.ScriptService
	Content  services.ContentService
	Preview  services.PreviewService
	Media    services.MediaService
	System   services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
	Renderer     *render.Renderer

	// Sessions is nil unless password sign-in is enabled.
	Sessions      *auth.SessionManager
	Authenticator *auth.Authenticator
	// MediaDir is set when uploads are written to the local file system.
	MediaDir string
	Locales  services.LocalePolicy

	logger  *zap.Logger
	build   services.BuildInfo
	clock   func() time.Time
	closers []func(context.Context) error
}

type containerOptions struct {
	logger   *zap.Logger
	build    services.BuildInfo
	fetcher  *secrets.Fetcher
	registry repositories.Registry
	clock    func() time.Time
}

// Option customises NewContainer.
type Option func(*containerOptions)

func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithBuildInfo(info services.BuildInfo) Option {
	return func(o *containerOptions) { o.build = info }
}

// WithSecretFetcher adds a Secret Manager probe to the readiness checks.
func WithSecretFetcher(fetcher *secrets.Fetcher) Option {
	return func(o *containerOptions) { o.fetcher = fetcher }
}

// WithRegistry supplies the repositories instead of opening the configured store.
func WithRegistry(reg repositories.Registry) Option {
	return func(o *containerOptions) { o.registry = reg }
}

func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies for cfg. Optional integrations (Pub/Sub,
// Resend, Cloud Storage, Firebase) are only dialed when configured.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (_ *Container, err error) {
	options := containerOptions{logger: zap.NewNop(), clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.build.StartedAt.IsZero() {
		options.build.StartedAt = options.clock().UTC()
	}
	if options.build.Environment == "" {
		options.build.Environment = cfg.Security.Environment
	}

	c := &Container{
		Config: cfg,
		logger: options.logger,
		build:  options.build,
		clock:  options.clock,
	}
	defer func() {
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = c.Close(closeCtx)
		}
	}()

	reg := options.registry
	if reg == nil {
		reg, err = openRegistry(ctx, cfg, c.logger)
		if err != nil {
			return nil, err
		}
	}
	c.Repositories = reg
	c.closers = append(c.closers, reg.Close)

	if err := c.buildServices(ctx, options.fetcher); err != nil {
		return nil, err
	}
	if err := c.buildAuth(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func openRegistry(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.Registry, error) {
	switch cfg.Store.Driver {
	case config.StoreFirestore:
		var providerOpts []pfirestore.ProviderOption
		if file := strings.TrimSpace(cfg.Firebase.CredentialsFile); file != "" {
			providerOpts = append(providerOpts, pfirestore.WithClientOptions(option.WithCredentialsFile(file)))
		}
		providerOpts = append(providerOpts, pfirestore.WithDialTimeout(cfg.Firestore.DialTimeout))
		reg, err := firestoreRepo.NewRegistry(pfirestore.NewProvider(cfg.Firestore, providerOpts...))
		if err != nil {
			return nil, fmt.Errorf("open firestore registry: %w", err)
		}
		return reg, nil
	case config.StoreSQLite:
		reg, err := sqliteRepo.Open(ctx, cfg.Store.SQLitePath, sqliteRepo.WithLogger(logger.Named("sqlite")))
		if err != nil {
			return nil, fmt.Errorf("open sqlite registry: %w", err)
		}
		return reg, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (c *Container) buildServices(ctx context.Context, fetcher *secrets.Fetcher) error {
	cfg := c.Config
	reg := c.Repositories

	locales, err := services.NewLocalePolicy(cfg.Content.DefaultLocale, cfg.Content.SupportedLocales)
	if err != nil {
		return fmt.Errorf("build locale policy: %w", err)
	}
	c.Locales = locales

	if c.Services.Accounts, err = services.NewAccountService(services.AccountServiceDeps{
		Accounts: reg.Accounts(),
		Clock:    c.clock,
	}); err != nil {
		return fmt.Errorf("build account service: %w", err)
	}
	if c.Services.Reviews, err = services.NewReviewService(services.ReviewServiceDeps{
		Reviews:                reg.Reviews(),
		Clock:                  c.clock,
		Locales:                locales,
		DefaultProcessHeadings: cfg.Render.ProcessHeadings,
	}); err != nil {
		return fmt.Errorf("build review service: %w", err)
	}
	if c.Services.Articles, err = services.NewArticleService(services.ArticleServiceDeps{
		Articles:               reg.Articles(),
		Clock:                  c.clock,
		Locales:                locales,
		DefaultProcessHeadings: cfg.Render.ProcessHeadings,
	}); err != nil {
		return fmt.Errorf("build article service: %w", err)
	}
	if c.Services.Scripts, err = services.NewScriptService(services.ScriptServiceDeps{
		Scripts: reg.Scripts(),
		Clock:   c.clock,
	}); err != nil {
		return fmt.Errorf("build script service: %w", err)
	}
	if c.Services.Content, err = services.NewContentService(services.ContentServiceDeps{
		CacheTTL: cfg.Render.CacheTTL,
	}); err != nil {
		return fmt.Errorf("build content service: %w", err)
	}

	c.Renderer = newRenderer(cfg.Render, c.logger)
	if c.Services.Preview, err = services.NewPreviewService(services.PreviewServiceDeps{
		Renderer:               c.Renderer,
		DefaultProcessHeadings: cfg.Render.ProcessHeadings,
	}); err != nil {
		return fmt.Errorf("build preview service: %w", err)
	}

	contactDeps := services.ContactServiceDeps{
		Contacts: reg.Contacts(),
		Clock:    c.clock,
		Logger:   eventLogger(c.logger.Named("contacts")),
	}
	if publisher, err := c.contactPublisher(ctx); err != nil {
		return err
	} else if publisher != nil {
		contactDeps.Events = publisher
	}
	if key := strings.TrimSpace(cfg.Email.ResendAPIKey); key != "" {
		notifier, err := email.NewResendNotifier(key, cfg.Email.From, cfg.Email.NotifyTo, email.WithLogger(c.logger.Named("email")))
		if err != nil {
			return fmt.Errorf("build contact notifier: %w", err)
		}
		contactDeps.Notifier = notifier
	}
	if c.Services.Contacts, err = services.NewContactService(contactDeps); err != nil {
		return fmt.Errorf("build contact service: %w", err)
	}

	if err := c.buildMedia(ctx); err != nil {
		return err
	}

	health, err := repositories.NewDependencyHealthRepository(c.healthChecks(fetcher),
		repositories.WithDependencyTimeout(cfg.Server.HealthCheckTimeout),
		repositories.WithDependencyClock(c.clock),
	)
	if err != nil {
		return fmt.Errorf("build health repository: %w", err)
	}
	if c.Services.System, err = services.NewSystemService(services.SystemServiceDeps{
		Health: health,
		Clock:  c.clock,
		Build:  c.build,
	}); err != nil {
		return fmt.Errorf("build system service: %w", err)
	}
	return nil
}

func newRenderer(cfg config.RenderConfig, logger *zap.Logger) *render.Renderer {
	opts := []render.Option{
		render.WithLogger(logger),
		render.WithAttachTimeout(cfg.AttachTimeout),
	}
	if cfg.ScriptingEnabled {
		opts = append(opts, render.WithSandboxes(render.GojaSandboxes(render.GojaOptions{
			Timeout: cfg.HandlerTimeout,
			Logger:  logger.Named("render"),
		})))
	}
	return render.NewRenderer(opts...)
}

func (c *Container) contactPublisher(ctx context.Context) (*jobs.PubSubContactPublisher, error) {
	cfg := c.Config.PubSub
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" || strings.TrimSpace(cfg.ContactTopic) == "" {
		return nil, nil
	}
	var clientOpts []option.ClientOption
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		clientOpts = append(clientOpts,
			option.WithoutAuthentication(),
			option.WithEndpoint(host),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	} else if file := strings.TrimSpace(c.Config.Firebase.CredentialsFile); file != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(file))
	}
	client, err := pubsub.NewClient(ctx, projectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("build pubsub client: %w", err)
	}
	publisher, err := jobs.NewPubSubContactPublisher(client.Topic(cfg.ContactTopic))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("build contact publisher: %w", err)
	}
	c.closers = append(c.closers, func(context.Context) error {
		publisher.Stop()
		return client.Close()
	})
	return publisher, nil
}

// buildMedia stores uploads in Cloud Storage when a bucket is configured, otherwise in a
// media directory next to the SQLite database.
func (c *Container) buildMedia(ctx context.Context) error {
	cfg := c.Config
	deps := services.MediaServiceDeps{
		Media:     c.Repositories.Media(),
		Processor: imaging.NewProcessor(cfg.Storage.MaxWidth, cfg.Storage.ThumbWidth),
		Clock:     c.clock,
		MaxBytes:  cfg.Storage.MaxUploadBytes,
		Logger:    eventLogger(c.logger.Named("media")),
	}

	if bucket := strings.TrimSpace(cfg.Storage.MediaBucket); bucket != "" {
		var clientOpts []option.ClientOption
		if file := strings.TrimSpace(cfg.Firebase.CredentialsFile); file != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(file))
		}
		client, err := gcs.NewClient(ctx, clientOpts...)
		if err != nil {
			return fmt.Errorf("build storage client: %w", err)
		}
		c.closers = append(c.closers, func(context.Context) error { return client.Close() })
		objects, err := storage.NewBucketStore(client, bucket, cfg.Storage.PublicBaseURL)
		if err != nil {
			return fmt.Errorf("build bucket store: %w", err)
		}
		deps.Objects = objects
		signer, err := uploadSigner(ctx, cfg.Storage, clientOpts...)
		if err != nil {
			return err
		}
		if signer != nil {
			uploads, err := storage.NewURLSigner(signer, bucket,
				storage.WithAllowedContentTypes(mediaContentTypes...),
				storage.WithMaxSize(cfg.Storage.MaxUploadBytes),
				storage.WithExpiry(cfg.Storage.SignedURLTTL),
				storage.WithClock(c.clock),
			)
			if err != nil {
				return fmt.Errorf("build upload signer: %w", err)
			}
			deps.Signer = uploads
		}
	} else {
		root := filepath.Join(filepath.Dir(cfg.Store.SQLitePath), localMediaDir)
		baseURL := cfg.Storage.PublicBaseURL
		if baseURL == "" {
			baseURL = localMediaURL
		}
		objects, err := storage.NewDirStore(root, baseURL)
		if err != nil {
			return fmt.Errorf("build media directory: %w", err)
		}
		deps.Objects = objects
		c.MediaDir = objects.Root()
	}

	media, err := services.NewMediaService(deps)
	if err != nil {
		return fmt.Errorf("build media service: %w", err)
	}
	c.Services.Media = media
	return nil
}

// uploadSigner prefers a local key file over IAM signBlob; nil means signed uploads are off.
func uploadSigner(ctx context.Context, cfg config.StorageConfig, opts ...option.ClientOption) (storage.Signer, error) {
	if path := strings.TrimSpace(cfg.SignerKeyFile); path != "" {
		signer, err := storage.NewKeySignerFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("build key signer: %w", err)
		}
		return signer, nil
	}
	if email := strings.TrimSpace(cfg.SignerEmail); email != "" {
		signer, err := storage.NewIAMSigner(ctx, email, opts...)
		if err != nil {
			return nil, fmt.Errorf("build iam signer: %w", err)
		}
		return signer, nil
	}
	return nil, nil
}

func (c *Container) healthChecks(fetcher *secrets.Fetcher) []repositories.DependencyCheck {
	reg := c.Repositories
	checks := []repositories.DependencyCheck{{
		Name:    c.Config.Store.Driver,
		Timeout: storeCheckTimeout,
		Check:   reg.Ping,
	}}
	if fetcher != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: secretCheckTimeout,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}
	return checks
}

func (c *Container) buildAuth(ctx context.Context) error {
	cfg := c.Config.Security
	var authOpts []auth.Option

	if cfg.SessionAuthEnabled() {
		sessions, err := auth.NewSessionManager([]byte(cfg.SessionSecret),
			auth.WithSessionTTL(cfg.SessionTTL),
			auth.WithSessionIssuer(cfg.SessionIssuer),
			auth.WithSessionClock(c.clock),
		)
		if err != nil {
			return fmt.Errorf("build session manager: %w", err)
		}
		c.Sessions = sessions
		authOpts = append(authOpts, auth.WithVerifier(sessions))
	}
	if cfg.FirebaseAuthEnabled() {
		fb := c.Config.Firebase
		verifier, err := auth.DialFirebaseVerifier(ctx, fb.ProjectID, fb.CredentialsFile,
			auth.WithRoleClaim(fb.RoleClaim),
			auth.WithFirebaseTimeout(fb.VerifyTimeout),
		)
		if err != nil {
			return fmt.Errorf("build firebase verifier: %w", err)
		}
		authOpts = append(authOpts, auth.WithVerifier(verifier))
	}
	authOpts = append(authOpts, auth.WithIdentityCheck(c.rejectDisabledAccounts))
	c.Authenticator = auth.NewAuthenticator(authOpts...)
	return nil
}

// rejectDisabledAccounts keeps a session token from outliving the account behind it.
func (c *Container) rejectDisabledAccounts(ctx context.Context, identity *auth.Identity) error {
	if identity == nil || identity.Provider != auth.ProviderSession {
		return nil
	}
	account, err := c.Services.Accounts.Get(ctx, identity.AccountID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			return auth.ErrIdentityRejected
		}
		return err
	}
	if account.Disabled {
		return auth.ErrIdentityRejected
	}
	return nil
}

// Seeder builds a content seeder writing through the review and article services.
func (c *Container) Seeder() (*cms.Seeder, error) {
	return cms.NewSeeder(cms.SeederDeps{
		Reviews:       c.Services.Reviews,
		Articles:      c.Services.Articles,
		Logger:        c.logger,
		DefaultLocale: c.Config.Content.DefaultLocale,
	})
}

// EnsureBootstrapAdmin creates the configured first admin when the account store is empty.
func (c *Container) EnsureBootstrapAdmin(ctx context.Context) error {
	cfg := c.Config.Security
	if cfg.BootstrapAdminEmail == "" {
		return nil
	}
	account, created, err := c.Services.Accounts.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		c.logger.Info("bootstrap admin created", zap.String("account_id", account.ID))
	}
	return nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// eventLogger adapts zap to the services' structured event hook. The request logger wins
// over base when one is attached to ctx.
func eventLogger(base *zap.Logger) services.EventLogger {
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := base
		if l := observability.FromContext(ctx); l != nil && l.Core().Enabled(zap.InfoLevel) {
			logger = l
		}
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		zfields := make([]zap.Field, 0, len(keys))
		for _, key := range keys {
			zfields = append(zfields, zap.Any(key, fields[key]))
		}
		logger.Info(event, zfields...)
	}
}
