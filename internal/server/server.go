// Package server exposes the shared document over HTTP: full-document
// get/put with last-write-wins semantics, a long-poll watch feed, user
// profiles, and token issuance.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"suretakip/internal/assistant"
	"suretakip/internal/dates"
	"suretakip/internal/domain"
	"suretakip/internal/events"
	"suretakip/internal/logger"
	"suretakip/internal/repo"
)

// photoURLMaxBytes caps inline data-URL avatars so one profile cannot
// bloat the users table.
const photoURLMaxBytes = 500 * 1024

// Config for the HTTP API handler.
type Config struct {
	DB           *sql.DB
	Repo         repo.Repo
	Events       events.Writer
	Log          logger.Logger
	BasePath     string
	Auth         AuthConfig
	WatchTimeout time.Duration
	Notifier     *Notifier
	Assistant    *assistant.Extractor
	Now          func() time.Time
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"document not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Süre Takip API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Log == nil {
		cfg.Log = logger.Nop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.WatchTimeout <= 0 {
		cfg.WatchTimeout = 30 * time.Second
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NewNotifier(nil, cfg.Log)
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Repo))
	hcfg := huma.DefaultConfig("Süre Takip API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerAuth(group, cfg)
	registerDocument(group, cfg)
	registerWatch(router, basePath, cfg)
	registerUsers(group, cfg)
	registerWebhooks(group, cfg)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case err == repo.ErrNotFound:
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case err == repo.ErrBadCredentials:
		return newAPIError(http.StatusUnauthorized, "invalid_credentials", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") || strings.Contains(lowered, "missing") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDocument(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "get-document",
		Method:      http.MethodGet,
		Path:        "/document",
		Summary:     "Get the shared document",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Document `json:"body"`
	}, error) {
		doc, err := cfg.Repo.GetDocument(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Document `json:"body"`
		}{Body: doc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-document",
		Method:      http.MethodPut,
		Path:        "/document",
		Summary:     "Replace the shared document",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body domain.Document `json:"body"`
	}) (*struct{}, error) {
		doc := input.Body
		if doc.LastUpdate == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "lastUpdate is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if doc.UpdatedBy == "" {
			doc.UpdatedBy = actorID
		}
		if err := replaceDocument(ctx, cfg, doc, actorID); err != nil {
			return nil, handleError(err)
		}
		cfg.Notifier.Notify(ctx, doc.LastUpdate)
		return &struct{}{}, nil
	})
}

// replaceDocument overwrites the master row and appends the audit event
// in one transaction. The newest write wins by arrival order; clients
// reconcile via the lastUpdate stamp on the watch feed.
func replaceDocument(ctx context.Context, cfg Config, doc domain.Document, actorID string) error {
	tx, err := cfg.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := cfg.Repo.PutDocument(ctx, tx, doc); err != nil {
		return err
	}
	if err := cfg.Events.Append(ctx, tx, "document.replaced", "document", "master", actorID, events.EventPayload{
		"obligations": len(doc.Obligations),
		"jobs":        len(doc.Jobs),
		"projects":    len(doc.Projects),
		"lastUpdate":  doc.LastUpdate,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func registerUsers(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List user profiles",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.AppUser `json:"body"`
	}, error) {
		users, err := cfg.Repo.ListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if users == nil {
			users = []domain.AppUser{}
		}
		return &struct {
			Body []domain.AppUser `json:"body"`
		}{Body: users}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-user",
		Method:      http.MethodPut,
		Path:        "/users/{email}",
		Summary:     "Upsert a user profile",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Email string         `path:"email"`
		Body  domain.AppUser `json:"body"`
	}) (*struct {
		Body domain.AppUser `json:"body"`
	}, error) {
		u := input.Body
		u.Email = strings.ToLower(strings.TrimSpace(input.Email))
		if u.Email == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "email is required", nil)
		}
		if len(u.PhotoURL) > photoURLMaxBytes {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "photoURL too large", map[string]any{"max_bytes": photoURLMaxBytes})
		}
		if u.LastUpdated.IsZero() {
			u.LastUpdated = dates.At(cfg.Now().UTC())
		}
		if err := cfg.Repo.UpsertUser(ctx, u); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AppUser `json:"body"`
		}{Body: u}, nil
	})
}
