package services

import (
	"context"
	"time"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/render"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Account            = domain.Account
	Review             = domain.Review
	Article            = domain.Article
	Contact            = domain.Contact
	HeadScript         = domain.HeadScript
	MediaAsset         = domain.MediaAsset
	SignedUpload       = domain.SignedUpload
	SystemHealthReport = domain.SystemHealthReport
)

// AccountService manages back-office accounts and password sign-in.
type AccountService interface {
	List(ctx context.Context, pager Pagination) (domain.CursorPage[Account], error)
	Get(ctx context.Context, accountID string) (Account, error)
	Create(ctx context.Context, cmd CreateAccountCommand) (Account, error)
	Update(ctx context.Context, cmd UpdateAccountCommand) (Account, error)
	Delete(ctx context.Context, cmd DeleteAccountCommand) error
	// Authenticate checks an email/password pair and records the login time.
	Authenticate(ctx context.Context, email, password string) (Account, error)
	// EnsureBootstrapAdmin creates the first admin when the store has no accounts yet.
	EnsureBootstrapAdmin(ctx context.Context, email, password string) (Account, bool, error)
}

type CreateAccountCommand struct {
	Email       string
	DisplayName string
	Role        string
	Password    string
}

// UpdateAccountCommand applies the non-nil fields.
type UpdateAccountCommand struct {
	AccountID   string
	ActorID     string
	DisplayName *string
	Role        *string
	Password    *string
	Disabled    *bool
}

type DeleteAccountCommand struct {
	AccountID string
	ActorID   string
}

// ReviewService manages broker, exchange and prop firm reviews.
type ReviewService interface {
	List(ctx context.Context, filter ReviewListFilter) (domain.CursorPage[Review], error)
	Get(ctx context.Context, reviewID string) (Review, error)
	GetBySlug(ctx context.Context, kind, slug, locale string) (Review, error)
	Create(ctx context.Context, cmd UpsertReviewCommand) (Review, error)
	Update(ctx context.Context, reviewID string, cmd UpsertReviewCommand) (Review, error)
	Delete(ctx context.Context, reviewID string) error
}

type ReviewListFilter struct {
	Kind          string
	Status        string
	Locale        string
	PublishedOnly bool
	Pagination    Pagination
}

// UpsertReviewCommand carries the editable review fields. ProcessHeadings nil keeps the
// current value on update and uses the configured default on create.
type UpsertReviewCommand struct {
	Kind            string
	Slug            string
	Name            string
	Rating          float64
	Summary         string
	Body            string
	BodyFormat      string
	LogoURL         string
	WebsiteURL      string
	Pros            []string
	Cons            []string
	Tags            []string
	Locale          string
	Status          string
	ProcessHeadings *bool
}

// ArticleService manages editorial articles.
type ArticleService interface {
	List(ctx context.Context, filter ArticleListFilter) (domain.CursorPage[Article], error)
	Get(ctx context.Context, articleID string) (Article, error)
	GetBySlug(ctx context.Context, slug, locale string) (Article, error)
	Create(ctx context.Context, cmd UpsertArticleCommand) (Article, error)
	Update(ctx context.Context, articleID string, cmd UpsertArticleCommand) (Article, error)
	Delete(ctx context.Context, articleID string) error
}

type ArticleListFilter struct {
	Category      string
	Status        string
	Locale        string
	PublishedOnly bool
	Pagination    Pagination
}

type UpsertArticleCommand struct {
	Slug            string
	Title           string
	Category        string
	Excerpt         string
	Body            string
	BodyFormat      string
	CoverURL        string
	Author          string
	Tags            []string
	Locale          string
	Status          string
	ProcessHeadings *bool
}

// ContactService accepts public contact form submissions and lets staff triage them.
type ContactService interface {
	Submit(ctx context.Context, cmd SubmitContactCommand) (Contact, error)
	List(ctx context.Context, filter ContactListFilter) (domain.CursorPage[Contact], error)
	Get(ctx context.Context, contactID string) (Contact, error)
	UpdateStatus(ctx context.Context, contactID, status string) (Contact, error)
	Delete(ctx context.Context, contactID string) error
}

type SubmitContactCommand struct {
	Name     string
	Email    string
	Phone    string
	Subject  string
	Message  string
	Source   string
	RemoteIP string
	// Website is a honeypot field; bots fill it, people never see it.
	Website string
}

type ContactListFilter struct {
	Status     string
	Pagination Pagination
}

// ContactSubmittedEvent is published for every stored submission.
type ContactSubmittedEvent struct {
	ContactID   string    `json:"contactId"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Subject     string    `json:"subject"`
	Source      string    `json:"source,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// ContactEventPublisher hands contact events to asynchronous consumers.
type ContactEventPublisher interface {
	PublishContactSubmitted(ctx context.Context, event ContactSubmittedEvent) (string, error)
}

// ContactNotifier alerts site operators about a new submission.
type ContactNotifier interface {
	NotifyContact(ctx context.Context, contact Contact) error
}

// ScriptService manages the snippets injected into public pages.
type ScriptService interface {
	List(ctx context.Context, placement string) ([]HeadScript, error)
	ListEnabled(ctx context.Context, placement string) ([]HeadScript, error)
	Get(ctx context.Context, scriptID string) (HeadScript, error)
	Create(ctx context.Context, cmd UpsertScriptCommand) (HeadScript, error)
	Update(ctx context.Context, scriptID string, cmd UpsertScriptCommand) (HeadScript, error)
	Delete(ctx context.Context, scriptID string) error
}

type UpsertScriptCommand struct {
	Name      string
	Placement string
	Code      string
	Enabled   bool
	Order     int
}

// ContentService prepares stored bodies for public delivery.
type ContentService interface {
	RenderReview(ctx context.Context, review Review) (RenderedBody, error)
	RenderArticle(ctx context.Context, article Article) (RenderedBody, error)
}

// RenderedBody is delivery ready markup plus the table of contents.
type RenderedBody struct {
	HTML     string
	Headings []render.HeadingRecord
}

// PreviewService runs a full render pass, handlers and scripts included, for editors.
type PreviewService interface {
	Preview(ctx context.Context, cmd PreviewCommand) (PreviewResult, error)
	// OpenSession keeps one container alive across edits, as the live preview does.
	OpenSession() PreviewSession
}

type PreviewCommand struct {
	HTML            string
	BodyFormat      string
	ProcessHeadings *bool
	// Events are dispatched after rendering: each entry is "selector:event", e.g. "#buy:click".
	Events []string
}

type PreviewResult struct {
	Markup     string
	Report     render.Report
	Dispatched []DispatchOutcome
}

type DispatchOutcome struct {
	Target  string   `json:"target"`
	Event   string   `json:"event"`
	Invoked int      `json:"invoked"`
	Errors  []string `json:"errors,omitempty"`
}

// PreviewSession renders successive edits into one container.
type PreviewSession interface {
	Render(ctx context.Context, cmd PreviewCommand) (PreviewResult, error)
	Close()
}

// MediaService stores uploaded images and issues direct upload URLs.
type MediaService interface {
	Upload(ctx context.Context, cmd UploadMediaCommand) (MediaAsset, error)
	SignUpload(ctx context.Context, cmd SignUploadCommand) (SignedUpload, error)
	List(ctx context.Context, pager Pagination) (domain.CursorPage[MediaAsset], error)
	Get(ctx context.Context, assetID string) (MediaAsset, error)
	Delete(ctx context.Context, assetID string) error
}

type UploadMediaCommand struct {
	FileName string
	Data     []byte
	ActorID  string
}

type SignUploadCommand struct {
	FileName    string
	ContentType string
}

// SystemService exposes operational metadata such as health reports.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}
