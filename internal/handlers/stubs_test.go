package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/auth"
	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

type stubReviewService struct {
	listFn   func(ctx context.Context, filter services.ReviewListFilter) (domain.CursorPage[services.Review], error)
	getFn    func(ctx context.Context, id string) (services.Review, error)
	slugFn   func(ctx context.Context, kind, slug, locale string) (services.Review, error)
	createFn func(ctx context.Context, cmd services.UpsertReviewCommand) (services.Review, error)
	updateFn func(ctx context.Context, id string, cmd services.UpsertReviewCommand) (services.Review, error)
	deleteFn func(ctx context.Context, id string) error
}

func (s *stubReviewService) List(ctx context.Context, filter services.ReviewListFilter) (domain.CursorPage[services.Review], error) {
	if s.listFn == nil {
		return domain.CursorPage[services.Review]{}, nil
	}
	return s.listFn(ctx, filter)
}

func (s *stubReviewService) Get(ctx context.Context, id string) (services.Review, error) {
	if s.getFn == nil {
		return services.Review{}, services.ErrReviewNotFound
	}
	return s.getFn(ctx, id)
}

func (s *stubReviewService) GetBySlug(ctx context.Context, kind, slug, locale string) (services.Review, error) {
	if s.slugFn == nil {
		return services.Review{}, services.ErrReviewNotFound
	}
	return s.slugFn(ctx, kind, slug, locale)
}

func (s *stubReviewService) Create(ctx context.Context, cmd services.UpsertReviewCommand) (services.Review, error) {
	return s.createFn(ctx, cmd)
}

func (s *stubReviewService) Update(ctx context.Context, id string, cmd services.UpsertReviewCommand) (services.Review, error) {
	return s.updateFn(ctx, id, cmd)
}

func (s *stubReviewService) Delete(ctx context.Context, id string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id)
}

type stubArticleService struct {
	listFn func(ctx context.Context, filter services.ArticleListFilter) (domain.CursorPage[services.Article], error)
	slugFn func(ctx context.Context, slug, locale string) (services.Article, error)
}

func (s *stubArticleService) List(ctx context.Context, filter services.ArticleListFilter) (domain.CursorPage[services.Article], error) {
	if s.listFn == nil {
		return domain.CursorPage[services.Article]{}, nil
	}
	return s.listFn(ctx, filter)
}

func (s *stubArticleService) Get(context.Context, string) (services.Article, error) {
	return services.Article{}, services.ErrArticleNotFound
}

func (s *stubArticleService) GetBySlug(ctx context.Context, slug, locale string) (services.Article, error) {
	if s.slugFn == nil {
		return services.Article{}, services.ErrArticleNotFound
	}
	return s.slugFn(ctx, slug, locale)
}

func (s *stubArticleService) Create(context.Context, services.UpsertArticleCommand) (services.Article, error) {
	return services.Article{}, services.ErrArticleInvalidInput
}

func (s *stubArticleService) Update(context.Context, string, services.UpsertArticleCommand) (services.Article, error) {
	return services.Article{}, services.ErrArticleNotFound
}

func (s *stubArticleService) Delete(context.Context, string) error { return nil }

type stubScriptService struct {
	scripts []services.HeadScript
	err     error
	lastArg string
}

func (s *stubScriptService) List(_ context.Context, placement string) ([]services.HeadScript, error) {
	s.lastArg = placement
	return s.scripts, s.err
}

func (s *stubScriptService) ListEnabled(_ context.Context, placement string) ([]services.HeadScript, error) {
	s.lastArg = placement
	return s.scripts, s.err
}

func (s *stubScriptService) Get(context.Context, string) (services.HeadScript, error) {
	return services.HeadScript{}, services.ErrScriptNotFound
}

func (s *stubScriptService) Create(_ context.Context, cmd services.UpsertScriptCommand) (services.HeadScript, error) {
	return services.HeadScript{ID: "scr_1", Name: cmd.Name, Placement: cmd.Placement, Code: cmd.Code, Enabled: cmd.Enabled}, s.err
}

func (s *stubScriptService) Update(context.Context, string, services.UpsertScriptCommand) (services.HeadScript, error) {
	return services.HeadScript{}, s.err
}

func (s *stubScriptService) Delete(context.Context, string) error { return s.err }

type stubContactService struct {
	submitted []services.SubmitContactCommand
	submitErr error
	status    string
}

func (s *stubContactService) Submit(_ context.Context, cmd services.SubmitContactCommand) (services.Contact, error) {
	if s.submitErr != nil {
		return services.Contact{}, s.submitErr
	}
	s.submitted = append(s.submitted, cmd)
	return services.Contact{ID: "ctc_1", Name: cmd.Name, Email: cmd.Email, Status: domain.ContactStatusNew}, nil
}

func (s *stubContactService) List(context.Context, services.ContactListFilter) (domain.CursorPage[services.Contact], error) {
	return domain.CursorPage[services.Contact]{Items: []services.Contact{{ID: "ctc_1", Status: domain.ContactStatusNew}}}, nil
}

func (s *stubContactService) Get(_ context.Context, id string) (services.Contact, error) {
	if id != "ctc_1" {
		return services.Contact{}, services.ErrContactNotFound
	}
	return services.Contact{ID: id, Status: domain.ContactStatusNew}, nil
}

func (s *stubContactService) UpdateStatus(_ context.Context, id, status string) (services.Contact, error) {
	if status != domain.ContactStatusRead && status != domain.ContactStatusArchived && status != domain.ContactStatusNew {
		return services.Contact{}, services.ErrContactInvalidInput
	}
	s.status = status
	return services.Contact{ID: id, Status: status}, nil
}

func (s *stubContactService) Delete(context.Context, string) error { return nil }

type stubAccountService struct {
	account services.Account
	authErr error
	deleted []services.DeleteAccountCommand
}

func (s *stubAccountService) List(context.Context, services.Pagination) (domain.CursorPage[services.Account], error) {
	return domain.CursorPage[services.Account]{Items: []services.Account{s.account}}, nil
}

func (s *stubAccountService) Get(context.Context, string) (services.Account, error) {
	return s.account, nil
}

func (s *stubAccountService) Create(_ context.Context, cmd services.CreateAccountCommand) (services.Account, error) {
	return services.Account{ID: "acc_new", Email: cmd.Email, Role: cmd.Role}, nil
}

func (s *stubAccountService) Update(context.Context, services.UpdateAccountCommand) (services.Account, error) {
	return s.account, nil
}

func (s *stubAccountService) Delete(_ context.Context, cmd services.DeleteAccountCommand) error {
	if cmd.AccountID == cmd.ActorID {
		return services.ErrAccountInvalidInput
	}
	s.deleted = append(s.deleted, cmd)
	return nil
}

func (s *stubAccountService) Authenticate(context.Context, string, string) (services.Account, error) {
	if s.authErr != nil {
		return services.Account{}, s.authErr
	}
	return s.account, nil
}

func (s *stubAccountService) EnsureBootstrapAdmin(context.Context, string, string) (services.Account, bool, error) {
	return services.Account{}, false, nil
}

var (
	_ services.ReviewService  = (*stubReviewService)(nil)
	_ services.ArticleService = (*stubArticleService)(nil)
	_ services.ScriptService  = (*stubScriptService)(nil)
	_ services.ContactService = (*stubContactService)(nil)
	_ services.AccountService = (*stubAccountService)(nil)
)

// withIdentity mounts routes behind a middleware that signs in identity.
func withIdentity(identity *auth.Identity, register func(chi.Router)) chi.Router {
	r := chi.NewRouter()
	r.Group(func(g chi.Router) {
		g.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(auth.WithIdentity(req.Context(), identity)))
			})
		})
		register(g)
	})
	return r
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}
