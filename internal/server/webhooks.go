package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"suretakip/internal/assistant"
	"suretakip/internal/domain"
	"suretakip/internal/engine"
	"suretakip/internal/logger"
	"suretakip/internal/repo"
	"suretakip/internal/store"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type teamsWebhookRequest struct {
	Text string `json:"text"`
	From string `json:"from,omitempty"`
}

type teamsWebhookResponse struct {
	Created     int                    `json:"created"`
	Suggestions []assistant.Suggestion `json:"suggestions"`
}

// registerWebhooks accepts forwarded Teams messages, extracts job
// suggestions with the assistant and appends the resulting jobs to the
// shared document.
func registerWebhooks(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "teams-webhook",
		Method:      http.MethodPost,
		Path:        "/webhooks/teams",
		Summary:     "Create jobs from a Teams message",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusServiceUnavailable,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body teamsWebhookRequest `json:"body"`
	}) (*struct {
		Body teamsWebhookResponse `json:"body"`
	}, error) {
		if cfg.Assistant == nil {
			return nil, newAPIError(http.StatusServiceUnavailable, "not_configured", "assistant is not configured", nil)
		}
		if strings.TrimSpace(input.Body.Text) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "text is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		actor := input.Body.From
		if actor == "" {
			actor = actorID
		}

		doc, err := cfg.Repo.GetDocument(ctx)
		if err != nil && err != repo.ErrNotFound {
			return nil, handleError(err)
		}
		users, err := cfg.Repo.ListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		projectNames := make([]string, 0, len(doc.Projects))
		for _, p := range doc.Projects {
			projectNames = append(projectNames, p.Name)
		}

		suggestions := cfg.Assistant.Extract(ctx, input.Body.Text, projectNames, users)
		resp := teamsWebhookResponse{Suggestions: suggestions}
		if len(suggestions) == 0 {
			resp.Suggestions = []assistant.Suggestion{}
			return &struct {
				Body teamsWebhookResponse `json:"body"`
			}{Body: resp}, nil
		}

		st := store.New()
		st.Now = cfg.Now
		st.SetObligations(doc.Obligations)
		st.SetJobs(doc.Jobs)
		st.SetProjects(doc.Projects)
		eng := engine.New(st)
		eng.Now = cfg.Now

		for _, s := range suggestions {
			form := engine.JobForm{
				Title:       s.Title,
				Description: s.Description,
				Priority:    s.Priority,
				Projects:    s.Projects,
				Assignees:   s.Assignees,
				Actor:       actor,
			}
			if s.DueDate != "" {
				if t, err := time.ParseInLocation("2006-01-02", s.DueDate, time.Local); err == nil {
					form.DueDate = &t
				}
			}
			created, err := eng.CreateJobs(form)
			if err != nil {
				cfg.Log.Warn("skipping unusable suggestion",
					logger.String("title", s.Title),
					logger.Error(err))
				continue
			}
			resp.Created += created
		}
		if resp.Created == 0 {
			return &struct {
				Body teamsWebhookResponse `json:"body"`
			}{Body: resp}, nil
		}

		out := domain.Document{
			Obligations: st.Obligations,
			Jobs:        st.Jobs,
			Projects:    st.Projects,
			LastUpdate:  cfg.Now().UTC().Format(isoMillis),
			UpdatedBy:   actor,
		}
		if err := replaceDocument(ctx, cfg, out, actorID); err != nil {
			return nil, handleError(err)
		}
		cfg.Notifier.Notify(ctx, out.LastUpdate)
		return &struct {
			Body teamsWebhookResponse `json:"body"`
		}{Body: resp}, nil
	})
}
