package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/imaging"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/storage"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

const (
	mediaIDPrefix  = "med_"
	uploadIDPrefix = "upl_"

	defaultMaxUploadBytes = 20 << 20

	mediaEventStored        = "media.stored"
	mediaEventCleanupFailed = "media.cleanup.failed"
	mediaEventUploadIssued  = "media.upload.issued"
)

var (
	ErrMediaInvalidInput = errors.New("media: invalid input")
	ErrMediaNotFound     = errors.New("media: not found")
	ErrMediaConflict     = errors.New("media: conflict")
	// ErrMediaSigningDisabled is returned by SignUpload when no bucket signer is configured.
	ErrMediaSigningDisabled = errors.New("media: signed uploads are not configured")
)

// ImageProcessor turns an upload into an original plus derived renditions.
type ImageProcessor interface {
	Process(data []byte) (imaging.Result, error)
}

// UploadSigner issues direct upload targets.
type UploadSigner interface {
	SignUpload(ctx context.Context, object, contentType string) (domain.SignedUpload, error)
}

type MediaServiceDeps struct {
	Media       repositories.MediaRepository
	Objects     storage.ObjectStore
	Processor   ImageProcessor
	Signer      UploadSigner
	Clock       func() time.Time
	IDGenerator func() string
	MaxBytes    int64
	Logger      EventLogger
}

type mediaService struct {
	media     repositories.MediaRepository
	objects   storage.ObjectStore
	processor ImageProcessor
	signer    UploadSigner
	clock     func() time.Time
	newID     func() string
	newUpload func() string
	maxBytes  int64
	logger    EventLogger
}

var _ MediaService = (*mediaService)(nil)

func NewMediaService(deps MediaServiceDeps) (MediaService, error) {
	switch {
	case deps.Media == nil:
		return nil, errors.New("media service: media repository is required")
	case deps.Objects == nil:
		return nil, errors.New("media service: object store is required")
	case deps.Processor == nil:
		return nil, errors.New("media service: image processor is required")
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = newIDGenerator(mediaIDPrefix)
	}
	maxBytes := deps.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &mediaService{
		media:     deps.Media,
		objects:   deps.Objects,
		processor: deps.Processor,
		signer:    deps.Signer,
		clock:     utcClock(deps.Clock),
		newID:     idGen,
		newUpload: newIDGenerator(uploadIDPrefix),
		maxBytes:  maxBytes,
		logger:    loggerOrNoop(deps.Logger),
	}, nil
}

// Upload stores the original and its WebP renditions, then records the asset. Objects
// written before a failure are removed again.
func (s *mediaService) Upload(ctx context.Context, cmd UploadMediaCommand) (MediaAsset, error) {
	if len(cmd.Data) == 0 {
		return MediaAsset{}, fmt.Errorf("%w: file is empty", ErrMediaInvalidInput)
	}
	if int64(len(cmd.Data)) > s.maxBytes {
		return MediaAsset{}, fmt.Errorf("%w: file exceeds %d bytes", ErrMediaInvalidInput, s.maxBytes)
	}
	result, err := s.processor.Process(cmd.Data)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) || errors.Is(err, imaging.ErrTooLarge) {
			return MediaAsset{}, fmt.Errorf("%w: %v", ErrMediaInvalidInput, err)
		}
		return MediaAsset{}, err
	}

	asset := MediaAsset{
		ID:          s.newID(),
		ContentType: result.Original.ContentType,
		Width:       result.Original.Width,
		Height:      result.Original.Height,
		Size:        int64(len(result.Original.Data)),
		CreatedBy:   strings.TrimSpace(cmd.ActorID),
		CreatedAt:   s.clock(),
	}

	var written []string
	put := func(r imaging.Rendition) (string, string, error) {
		objectPath, err := storage.MediaObjectPath(asset.ID, r.Name, r.Ext)
		if err != nil {
			return "", "", err
		}
		url, err := s.objects.Put(ctx, objectPath, r.ContentType, r.Data)
		if err != nil {
			return "", "", fmt.Errorf("media: store %s: %w", r.Name, err)
		}
		written = append(written, objectPath)
		return objectPath, url, nil
	}

	asset.ObjectPath, asset.URL, err = put(result.Original)
	if err != nil {
		s.cleanup(ctx, asset.ID, written)
		return MediaAsset{}, err
	}
	for _, variant := range result.Variants {
		objectPath, url, err := put(variant)
		if err != nil {
			s.cleanup(ctx, asset.ID, written)
			return MediaAsset{}, err
		}
		asset.Variants = append(asset.Variants, domain.MediaVariant{
			Name:        variant.Name,
			ObjectPath:  objectPath,
			URL:         url,
			ContentType: variant.ContentType,
			Width:       variant.Width,
			Height:      variant.Height,
			Size:        int64(len(variant.Data)),
		})
	}

	if err := s.media.Insert(ctx, asset); err != nil {
		s.cleanup(ctx, asset.ID, written)
		return MediaAsset{}, s.mapError(err)
	}
	s.logger(ctx, mediaEventStored, map[string]any{
		"assetId":  asset.ID,
		"actorId":  asset.CreatedBy,
		"size":     asset.Size,
		"variants": len(asset.Variants),
		"fileName": strings.TrimSpace(cmd.FileName),
	})
	return asset, nil
}

func (s *mediaService) SignUpload(ctx context.Context, cmd SignUploadCommand) (SignedUpload, error) {
	if s.signer == nil {
		return SignedUpload{}, ErrMediaSigningDisabled
	}
	objectPath, err := storage.UploadObjectPath(s.clock(), s.newUpload(), cmd.FileName)
	if err != nil {
		return SignedUpload{}, fmt.Errorf("%w: %v", ErrMediaInvalidInput, err)
	}
	if strings.TrimSpace(cmd.ContentType) == "" {
		return SignedUpload{}, fmt.Errorf("%w: content type is required", ErrMediaInvalidInput)
	}
	upload, err := s.signer.SignUpload(ctx, objectPath, cmd.ContentType)
	if err != nil {
		if errors.Is(err, storage.ErrContentTypeDenied) {
			return SignedUpload{}, fmt.Errorf("%w: %v", ErrMediaInvalidInput, err)
		}
		return SignedUpload{}, err
	}
	s.logger(ctx, mediaEventUploadIssued, map[string]any{
		"objectPath":  upload.ObjectPath,
		"contentType": cmd.ContentType,
		"expiresAt":   upload.ExpiresAt,
	})
	return upload, nil
}

func (s *mediaService) List(ctx context.Context, pager Pagination) (domain.CursorPage[MediaAsset], error) {
	page, err := s.media.List(ctx, pager)
	if err != nil {
		return domain.CursorPage[MediaAsset]{}, mapListError(err, ErrMediaInvalidInput, ErrMediaNotFound, ErrMediaConflict)
	}
	return page, nil
}

func (s *mediaService) Get(ctx context.Context, assetID string) (MediaAsset, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return MediaAsset{}, fmt.Errorf("%w: asset id is required", ErrMediaInvalidInput)
	}
	asset, err := s.media.FindByID(ctx, assetID)
	if err != nil {
		return MediaAsset{}, s.mapError(err)
	}
	return asset, nil
}

// Delete removes the record first so a failed object cleanup never leaves a dangling
// reference behind.
func (s *mediaService) Delete(ctx context.Context, assetID string) error {
	asset, err := s.Get(ctx, assetID)
	if err != nil {
		return err
	}
	if err := s.media.Delete(ctx, asset.ID); err != nil {
		return s.mapError(err)
	}
	paths := []string{asset.ObjectPath}
	for _, variant := range asset.Variants {
		paths = append(paths, variant.ObjectPath)
	}
	s.cleanup(ctx, asset.ID, paths)
	return nil
}

func (s *mediaService) cleanup(ctx context.Context, assetID string, paths []string) {
	for _, objectPath := range paths {
		if objectPath == "" {
			continue
		}
		if err := s.objects.Delete(ctx, objectPath); err != nil {
			s.logger(ctx, mediaEventCleanupFailed, map[string]any{
				"assetId":    assetID,
				"objectPath": objectPath,
				"error":      err.Error(),
			})
		}
	}
}

func (s *mediaService) mapError(err error) error {
	return mapRepositoryError(err, ErrMediaNotFound, ErrMediaConflict)
}
