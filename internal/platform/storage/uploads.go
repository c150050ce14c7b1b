package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
)

const (
	defaultUploadExpiry = 15 * time.Minute
	maxUploadExpiry     = time.Hour
)

var (
	errNoSigner           = errors.New("storage: signer is required")
	errInvalidBucket      = errors.New("storage: bucket name is required")
	errInvalidObject      = errors.New("storage: object name is required")
	errContentTypeMissing = errors.New("storage: content type is required for uploads")
	errExpiryTooLong      = errors.New("storage: expiry exceeds permitted maximum")
)

// ErrContentTypeDenied is returned when an upload's content type is outside the allowlist.
var ErrContentTypeDenied = errors.New("storage: content type not allowed")

// URLSigner issues V4 signed PUT URLs so editors can upload large files directly to the bucket.
type URLSigner struct {
	signer  Signer
	bucket  string
	allowed []string
	maxSize int64
	expiry  time.Duration
	now     func() time.Time
}

type URLSignerOption func(*URLSigner)

// WithAllowedContentTypes restricts uploads; entries may use a "type/*" wildcard.
func WithAllowedContentTypes(types ...string) URLSignerOption {
	return func(s *URLSigner) { s.allowed = append(s.allowed, types...) }
}

// WithMaxSize adds an x-goog-content-length-range header to every signed URL.
func WithMaxSize(size int64) URLSignerOption {
	return func(s *URLSigner) { s.maxSize = size }
}

func WithExpiry(expiry time.Duration) URLSignerOption {
	return func(s *URLSigner) {
		if expiry > 0 {
			s.expiry = expiry
		}
	}
}

func WithClock(clock func() time.Time) URLSignerOption {
	return func(s *URLSigner) {
		if clock != nil {
			s.now = clock
		}
	}
}

func NewURLSigner(signer Signer, bucket string, opts ...URLSignerOption) (*URLSigner, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	s := &URLSigner{signer: signer, bucket: bucket, expiry: defaultUploadExpiry, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.expiry > maxUploadExpiry {
		return nil, errExpiryTooLong
	}
	return s, nil
}

// SignUpload returns the URL and the headers the client must send with its PUT.
func (s *URLSigner) SignUpload(ctx context.Context, object, contentType string) (domain.SignedUpload, error) {
	object = strings.TrimSpace(object)
	if object == "" {
		return domain.SignedUpload{}, errInvalidObject
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return domain.SignedUpload{}, errContentTypeMissing
	}
	if len(s.allowed) > 0 && !contentTypeAllowed(contentType, s.allowed) {
		return domain.SignedUpload{}, ErrContentTypeDenied
	}

	headers := map[string]string{"Content-Type": contentType}
	var extHeaders []string
	if s.maxSize > 0 {
		sizeRange := fmt.Sprintf("0,%d", s.maxSize)
		extHeaders = append(extHeaders, "x-goog-content-length-range:"+sizeRange)
		headers["x-goog-content-length-range"] = sizeRange
	}

	expires := s.now().Add(s.expiry)
	signed, err := gcs.SignedURL(s.bucket, object, &gcs.SignedURLOptions{
		GoogleAccessID: s.signer.Email(),
		Scheme:         gcs.SigningSchemeV4,
		Method:         "PUT",
		ContentType:    contentType,
		Headers:        extHeaders,
		Expires:        expires,
		SignBytes: func(payload []byte) ([]byte, error) {
			return s.signer.SignBytes(ctx, payload)
		},
	})
	if err != nil {
		return domain.SignedUpload{}, fmt.Errorf("storage: sign upload url: %w", err)
	}
	return domain.SignedUpload{
		ObjectPath: object,
		URL:        signed,
		Method:     "PUT",
		Headers:    headers,
		ExpiresAt:  expires,
	}, nil
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	normalized := strings.ToLower(contentType)
	if i := strings.IndexByte(normalized, ';'); i >= 0 {
		normalized = strings.TrimSpace(normalized[:i])
	}
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		switch {
		case candidate == "":
		case candidate == "*" || candidate == normalized:
			return true
		case strings.HasSuffix(candidate, "/*") && strings.HasPrefix(normalized, strings.TrimSuffix(candidate, "*")):
			return true
		}
	}
	return false
}
