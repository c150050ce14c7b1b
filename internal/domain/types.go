package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// Account is a back-office user. PasswordHash is empty for Firebase-only accounts.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	Role         string
	PasswordHash string
	Disabled     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Publication states shared by reviews and articles.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Body formats. HTML is what the editor saves; markdown comes from seeded content.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// Review kinds.
const (
	ReviewKindBroker   = "broker"
	ReviewKindExchange = "exchange"
	ReviewKindPropFirm = "prop_firm"
)

// Review is a rated write-up of a broker, exchange or prop firm.
type Review struct {
	ID              string
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
	ProcessHeadings bool
	PublishedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsPublished reports whether the review is visible on the public site.
func (r Review) IsPublished() bool { return r.Status == StatusPublished }

// Article is an editorial post (guides, news, analysis).
type Article struct {
	ID              string
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
	ProcessHeadings bool
	PublishedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a Article) IsPublished() bool { return a.Status == StatusPublished }

// Contact states.
const (
	ContactStatusNew      = "new"
	ContactStatusRead     = "read"
	ContactStatusArchived = "archived"
)

// Contact is a message submitted through the public contact form.
type Contact struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Subject   string
	Message   string
	Source    string
	Status    string
	RemoteIP  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Script placements.
const (
	PlacementHead = "head"
	PlacementBody = "body"
)

// HeadScript is an admin-managed snippet (analytics, widgets) injected into public pages.
type HeadScript struct {
	ID        string
	Name      string
	Placement string
	Code      string
	Enabled   bool
	Order     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MediaAsset is an uploaded image with its derived variants.
type MediaAsset struct {
	ID          string
	ObjectPath  string
	URL         string
	ContentType string
	Width       int
	Height      int
	Size        int64
	Variants    []MediaVariant
	CreatedBy   string
	CreatedAt   time.Time
}

type MediaVariant struct {
	Name        string
	ObjectPath  string
	URL         string
	ContentType string
	Width       int
	Height      int
	Size        int64
}

// SignedUpload is a pre-signed PUT target for raw uploads.
type SignedUpload struct {
	ObjectPath string
	URL        string
	Method     string
	Headers    map[string]string
	ExpiresAt  time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
