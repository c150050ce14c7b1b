package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Hoangthang194/review-agency-sub000/internal/platform/httpx"
	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

const (
	defaultMaxUploadSize = 20 << 20
	multipartMemory      = 8 << 20
	uploadFormField      = "file"
)

// AdminMediaHandlers accepts image uploads and issues direct upload URLs.
type AdminMediaHandlers struct {
	media     services.MediaService
	maxUpload int64
}

func NewAdminMediaHandlers(media services.MediaService, maxUpload int64) *AdminMediaHandlers {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadSize
	}
	return &AdminMediaHandlers{media: media, maxUpload: maxUpload}
}

func (h *AdminMediaHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/media", func(rt chi.Router) {
		rt.Get("/", h.list)
		rt.Post("/", h.upload)
		rt.Post("/uploads", h.signUpload)
		rt.Get("/{assetID}", h.get)
		rt.Delete("/{assetID}", h.delete)
	})
}

type mediaVariantPayload struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int64  `json:"size"`
}

type mediaPayload struct {
	ID          string                `json:"id"`
	URL         string                `json:"url"`
	ObjectPath  string                `json:"object_path"`
	ContentType string                `json:"content_type"`
	Width       int                   `json:"width"`
	Height      int                   `json:"height"`
	Size        int64                 `json:"size"`
	Variants    []mediaVariantPayload `json:"variants"`
	CreatedBy   string                `json:"created_by,omitempty"`
	CreatedAt   string                `json:"created_at"`
}

func buildMediaPayload(asset services.MediaAsset) mediaPayload {
	payload := mediaPayload{
		ID:          asset.ID,
		URL:         asset.URL,
		ObjectPath:  asset.ObjectPath,
		ContentType: asset.ContentType,
		Width:       asset.Width,
		Height:      asset.Height,
		Size:        asset.Size,
		Variants:    make([]mediaVariantPayload, 0, len(asset.Variants)),
		CreatedBy:   asset.CreatedBy,
		CreatedAt:   formatTime(asset.CreatedAt),
	}
	for _, variant := range asset.Variants {
		payload.Variants = append(payload.Variants, mediaVariantPayload{
			Name:        variant.Name,
			URL:         variant.URL,
			ContentType: variant.ContentType,
			Width:       variant.Width,
			Height:      variant.Height,
			Size:        variant.Size,
		})
	}
	return payload
}

func (h *AdminMediaHandlers) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.media == nil {
		mediaErrors.unavailable(ctx, w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError(payloadTooLargeCode, "upload exceeds allowed size", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError(invalidRequestCode, "multipart form expected", http.StatusBadRequest))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError(invalidRequestCode, "file field is required", http.StatusBadRequest))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError(invalidRequestCode, "failed to read upload", http.StatusBadRequest))
		return
	}
	if int64(len(data)) > h.maxUpload {
		httpx.WriteError(ctx, w, httpx.NewError(payloadTooLargeCode, "upload exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}

	asset, err := h.media.Upload(ctx, services.UploadMediaCommand{
		FileName: header.Filename,
		Data:     data,
		ActorID:  actorID(r),
	})
	if err != nil {
		mediaErrors.write(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildMediaPayload(asset))
}

type signUploadRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

type signedUploadPayload struct {
	ObjectPath string            `json:"object_path"`
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers,omitempty"`
	ExpiresAt  string            `json:"expires_at"`
}

func (h *AdminMediaHandlers) signUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.media == nil {
		mediaErrors.unavailable(ctx, w)
		return
	}
	var req signUploadRequest
	if !decodeJSONBody(w, r, defaultBodyLimit, &req) {
		return
	}
	upload, err := h.media.SignUpload(ctx, services.SignUploadCommand{
		FileName:    strings.TrimSpace(req.FileName),
		ContentType: strings.TrimSpace(req.ContentType),
	})
	if err != nil {
		if errors.Is(err, services.ErrMediaSigningDisabled) {
			httpx.WriteError(ctx, w, httpx.NewError("signed_upload_disabled", "signed uploads are not configured", http.StatusNotImplemented))
			return
		}
		mediaErrors.write(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, signedUploadPayload{
		ObjectPath: upload.ObjectPath,
		URL:        upload.URL,
		Method:     upload.Method,
		Headers:    upload.Headers,
		ExpiresAt:  formatTime(upload.ExpiresAt),
	})
}

type mediaListResponse struct {
	Items         []mediaPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

func (h *AdminMediaHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.media == nil {
		mediaErrors.unavailable(ctx, w)
		return
	}
	pager, ok := pagerFromRequest(w, r)
	if !ok {
		return
	}
	page, err := h.media.List(ctx, pager)
	if err != nil {
		mediaErrors.write(ctx, w, err)
		return
	}
	resp := mediaListResponse{Items: make([]mediaPayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, asset := range page.Items {
		resp.Items = append(resp.Items, buildMediaPayload(asset))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *AdminMediaHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.media == nil {
		mediaErrors.unavailable(ctx, w)
		return
	}
	asset, err := h.media.Get(ctx, strings.TrimSpace(chi.URLParam(r, "assetID")))
	if err != nil {
		mediaErrors.write(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildMediaPayload(asset))
}

func (h *AdminMediaHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.media == nil {
		mediaErrors.unavailable(ctx, w)
		return
	}
	if err := h.media.Delete(ctx, strings.TrimSpace(chi.URLParam(r, "assetID"))); err != nil {
		mediaErrors.write(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
