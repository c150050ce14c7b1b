package storage

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeSigner struct {
	email    string
	payloads [][]byte
	err      error
}

func (f *fakeSigner) Email() string { return f.email }

func (f *fakeSigner) SignBytes(_ context.Context, payload []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, append([]byte(nil), payload...))
	return []byte("signed"), nil
}

func TestSignUploadSuccess(t *testing.T) {
	signer := &fakeSigner{email: "media@example.iam.gserviceaccount.com"}
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	urls, err := NewURLSigner(signer, "review-media",
		WithClock(func() time.Time { return now }),
		WithAllowedContentTypes("image/*", "application/pdf"),
		WithMaxSize(1<<20),
		WithExpiry(10*time.Minute),
	)
	if err != nil {
		t.Fatalf("NewURLSigner: %v", err)
	}

	res, err := urls.SignUpload(context.Background(), "uploads/2025/01/upl_1/logo.png", "image/png")
	if err != nil {
		t.Fatalf("SignUpload returned error: %v", err)
	}
	if res.Method != "PUT" || res.ObjectPath != "uploads/2025/01/upl_1/logo.png" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.ExpiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", res.ExpiresAt)
	}
	if res.Headers["Content-Type"] != "image/png" || res.Headers["x-goog-content-length-range"] != "0,1048576" {
		t.Fatalf("unexpected headers %v", res.Headers)
	}
	parsed, err := url.Parse(res.URL)
	if err != nil {
		t.Fatalf("parse signed URL: %v", err)
	}
	if !strings.Contains(parsed.RawQuery, "X-Goog-Signature=") {
		t.Fatalf("expected signature in query: %s", parsed.RawQuery)
	}
	if len(signer.payloads) != 1 {
		t.Fatalf("expected one signing call, got %d", len(signer.payloads))
	}
}

func TestSignUploadRejectsContentType(t *testing.T) {
	urls, err := NewURLSigner(&fakeSigner{email: "svc@example.com"}, "bucket", WithAllowedContentTypes("image/*"))
	if err != nil {
		t.Fatalf("NewURLSigner: %v", err)
	}
	if _, err := urls.SignUpload(context.Background(), "uploads/a.exe", "application/x-msdownload"); !errors.Is(err, ErrContentTypeDenied) {
		t.Fatalf("expected ErrContentTypeDenied, got %v", err)
	}
	if _, err := urls.SignUpload(context.Background(), "uploads/a.png", ""); !errors.Is(err, errContentTypeMissing) {
		t.Fatalf("expected missing content type error, got %v", err)
	}
}

func TestNewURLSignerValidates(t *testing.T) {
	if _, err := NewURLSigner(nil, "bucket"); !errors.Is(err, errNoSigner) {
		t.Fatalf("expected errNoSigner, got %v", err)
	}
	if _, err := NewURLSigner(&fakeSigner{email: "svc@example.com"}, " "); !errors.Is(err, errInvalidBucket) {
		t.Fatalf("expected errInvalidBucket, got %v", err)
	}
	if _, err := NewURLSigner(&fakeSigner{email: "svc@example.com"}, "bucket", WithExpiry(2*time.Hour)); !errors.Is(err, errExpiryTooLong) {
		t.Fatalf("expected errExpiryTooLong, got %v", err)
	}
}

func TestObjectPaths(t *testing.T) {
	got, err := MediaObjectPath("med_1", "thumb", ".webp")
	if err != nil || got != "media/med_1/thumb.webp" {
		t.Fatalf("MediaObjectPath = %q, %v", got, err)
	}
	if _, err := MediaObjectPath("../etc", "thumb", "webp"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}

	at := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	got, err = UploadObjectPath(at, "upl_1", `C:\docs\rate card.pdf`)
	if err != nil || got != "uploads/2025/03/upl_1/rate-card.pdf" {
		t.Fatalf("UploadObjectPath = %q, %v", got, err)
	}
	if _, err := UploadObjectPath(at, "upl_1", ""); err == nil {
		t.Fatalf("expected empty file name to be rejected")
	}
}

func TestDirStorePutAndDelete(t *testing.T) {
	root := t.TempDir()
	store, err := NewDirStore(root, "https://cdn.example.com/")
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}
	ctx := context.Background()

	link, err := store.Put(ctx, "media/med_1/original.png", "image/png", []byte("png"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if link != "https://cdn.example.com/media/med_1/original.png" {
		t.Fatalf("unexpected url %s", link)
	}
	if data, err := os.ReadFile(filepath.Join(root, "media", "med_1", "original.png")); err != nil || string(data) != "png" {
		t.Fatalf("unexpected file contents %q, %v", data, err)
	}

	if err := store.Delete(ctx, "media/med_1/original.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "media/med_1/original.png"); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
	if _, err := store.Put(ctx, "../escape.txt", "text/plain", nil); err == nil {
		t.Fatalf("expected escaping path to be rejected")
	}
}

func writeServiceAccountKey(t *testing.T, key *rsa.PrivateKey, pkcs8 bool) string {
	t.Helper()
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	if pkcs8 {
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			t.Fatalf("marshal pkcs8: %v", err)
		}
		block = &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	}
	data, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"client_email": "media@example.iam.gserviceaccount.com",
		"private_key":  string(pem.EncodeToMemory(block)),
	})
	if err != nil {
		t.Fatalf("marshal key json: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	return path
}

func TestKeySignerSignsWithServiceAccountKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	payload := []byte("GOOG4-RSA-SHA256\n20250101T120000Z")

	for _, pkcs8 := range []bool{true, false} {
		signer, err := NewKeySignerFromFile(writeServiceAccountKey(t, key, pkcs8))
		if err != nil {
			t.Fatalf("NewKeySignerFromFile(pkcs8=%v): %v", pkcs8, err)
		}
		if signer.Email() != "media@example.iam.gserviceaccount.com" {
			t.Fatalf("unexpected email %q", signer.Email())
		}
		sig, err := signer.SignBytes(context.Background(), payload)
		if err != nil {
			t.Fatalf("SignBytes: %v", err)
		}
		digest := sha256.Sum256(payload)
		if err := rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], sig); err != nil {
			t.Fatalf("signature does not verify (pkcs8=%v): %v", pkcs8, err)
		}
	}
}

func TestKeySignerBacksSignedUploads(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := NewKeySignerFromFile(writeServiceAccountKey(t, key, true))
	if err != nil {
		t.Fatalf("NewKeySignerFromFile: %v", err)
	}
	urls, err := NewURLSigner(signer, "review-media", WithAllowedContentTypes("image/*"))
	if err != nil {
		t.Fatalf("NewURLSigner: %v", err)
	}
	res, err := urls.SignUpload(context.Background(), "uploads/logo.png", "image/png")
	if err != nil {
		t.Fatalf("SignUpload: %v", err)
	}
	parsed, err := url.Parse(res.URL)
	if err != nil {
		t.Fatalf("parse signed URL: %v", err)
	}
	credential := parsed.Query().Get("X-Goog-Credential")
	if !strings.HasPrefix(credential, "media@example.iam.gserviceaccount.com/") {
		t.Fatalf("expected key email in credential, got %q", credential)
	}
	if parsed.Query().Get("X-Goog-Signature") == "" {
		t.Fatalf("expected signature in %s", res.URL)
	}
}

func TestKeySignerRejectsBadKeys(t *testing.T) {
	if _, err := NewKeySignerFromJSON(nil); err == nil {
		t.Fatal("expected error for empty JSON")
	}
	if _, err := NewKeySignerFromJSON([]byte(`{"private_key":"x"}`)); err == nil {
		t.Fatal("expected error for missing client_email")
	}
	if _, err := NewKeySignerFromJSON([]byte(`{"client_email":"a@b.c","private_key":"not pem"}`)); err == nil {
		t.Fatal("expected error for undecodable key")
	}
	if _, err := NewKeySignerFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
