package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

const (
	defaultRoleClaim     = "role"
	defaultVerifyTimeout = 5 * time.Second
)

// IDTokenVerifier is the subset of the Firebase Admin auth client used for sign-in.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier turns Firebase ID tokens into identities. Editors sign in with Firebase
// when the site runs in firebase auth mode; their role comes from a custom claim.
type FirebaseVerifier struct {
	client    IDTokenVerifier
	roleClaim string
	timeout   time.Duration
}

// FirebaseOption customises FirebaseVerifier instances.
type FirebaseOption func(*FirebaseVerifier)

func WithFirebaseTimeout(d time.Duration) FirebaseOption {
	return func(v *FirebaseVerifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

func WithRoleClaim(claim string) FirebaseOption {
	return func(v *FirebaseVerifier) {
		if claim = strings.TrimSpace(claim); claim != "" {
			v.roleClaim = claim
		}
	}
}

// NewFirebaseVerifier wraps an existing ID token client, mainly for tests.
func NewFirebaseVerifier(client IDTokenVerifier, opts ...FirebaseOption) *FirebaseVerifier {
	v := &FirebaseVerifier{client: client, roleClaim: defaultRoleClaim, timeout: defaultVerifyTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// DialFirebaseVerifier initialises the Firebase Admin SDK for projectID.
func DialFirebaseVerifier(ctx context.Context, projectID, credentialsFile string, opts ...FirebaseOption) (*FirebaseVerifier, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("auth: firebase project id is required")
	}
	var clientOpts []option.ClientOption
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("auth: initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: initialise firebase auth client: %w", err)
	}
	return NewFirebaseVerifier(client, opts...), nil
}

// Verify implements TokenVerifier.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("auth: firebase verifier not initialised")
	}
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	token, err := v.client.VerifyIDToken(ctx, idToken)
	switch {
	case err == nil:
	case firebaseauth.IsIDTokenExpired(err):
		return nil, ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	role := NormalizeRole(claimString(token.Claims, v.roleClaim))
	if role == "" {
		return nil, fmt.Errorf("%w: missing %s claim", ErrTokenInvalid, v.roleClaim)
	}
	return &Identity{
		AccountID: token.UID,
		Email:     claimString(token.Claims, "email"),
		Role:      role,
		Provider:  ProviderFirebase,
		ExpiresAt: time.Unix(token.Expires, 0).UTC(),
	}, nil
}

func claimString(claims map[string]any, key string) string {
	switch v := claims[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && NormalizeRole(s) != "" {
				return s
			}
		}
	}
	return ""
}
