// Package engine implements the business operations on the store:
// obligation lifecycle, job fan-out and toggling, re-import merging,
// project and user upserts. It touches no transport or storage; callers
// persist and sync after a successful operation.
package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"suretakip/internal/dates"
	"suretakip/internal/domain"
	"suretakip/internal/status"
	"suretakip/internal/store"
)

var ErrNotFound = errors.New("not found")

type Engine struct {
	Store *store.Store
	Now   func() time.Time
}

func New(st *store.Store) Engine {
	return Engine{Store: st, Now: time.Now}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ObligationCreateOptions are the manual-entry form fields.
type ObligationCreateOptions struct {
	ProjectName string
	ProjectLink string
	Type        string
	Description string
	Deadline    time.Time
	Notes       string
}

// AddObligation validates and appends a new pending obligation.
func (e Engine) AddObligation(opts ObligationCreateOptions) (domain.Obligation, error) {
	if strings.TrimSpace(opts.ProjectName) == "" {
		return domain.Obligation{}, fmt.Errorf("proje adı gerekli")
	}
	if opts.Deadline.IsZero() {
		return domain.Obligation{}, fmt.Errorf("son tarih gerekli")
	}
	now := e.now()
	o := domain.Obligation{
		ID:                    domain.NewID(),
		ProjectName:           strings.TrimSpace(opts.ProjectName),
		ProjectLink:           opts.ProjectLink,
		ObligationType:        strings.TrimSpace(opts.Type),
		ObligationDescription: strings.TrimSpace(opts.Description),
		Deadline:              dates.At(opts.Deadline),
		Notes:                 opts.Notes,
		Status:                status.StoredPending,
		CreatedAt:             dates.At(now),
		UpdatedAt:             dates.At(now),
	}
	e.Store.SetObligations(append(e.Store.Obligations, o))
	return o, nil
}

// ToggleObligationStatus flips the stored flag between pending and
// completed and returns the new value.
func (e Engine) ToggleObligationStatus(id string) (string, error) {
	var newStatus string
	ok := e.Store.UpdateObligation(id, func(o *domain.Obligation) {
		if o.Status == status.StoredCompleted {
			o.Status = status.StoredPending
		} else {
			o.Status = status.StoredCompleted
		}
		newStatus = o.Status
	})
	if !ok {
		return "", fmt.Errorf("obligation %s: %w", id, ErrNotFound)
	}
	return newStatus, nil
}

// SetObligationDeadline moves a deadline.
func (e Engine) SetObligationDeadline(id string, deadline time.Time) error {
	if !e.Store.UpdateObligation(id, func(o *domain.Obligation) {
		o.Deadline = dates.At(deadline)
	}) {
		return fmt.Errorf("obligation %s: %w", id, ErrNotFound)
	}
	return nil
}

// CommentObligation appends to the comment thread.
func (e Engine) CommentObligation(id, actor, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("yorum boş olamaz")
	}
	if !e.Store.UpdateObligation(id, func(o *domain.Obligation) {
		o.Comments = append(o.Comments, domain.Comment{
			User:      actor,
			Text:      text,
			Timestamp: dates.At(e.now()),
		})
	}) {
		return fmt.Errorf("obligation %s: %w", id, ErrNotFound)
	}
	return nil
}

// JobForm is one submission of the new-job form. Projects and Assignees
// are multi-selects; the submission fans out to one job per pair.
type JobForm struct {
	Title                  string
	Description            string
	Priority               string
	DueDate                *time.Time
	Projects               []string
	Assignees              []string
	RelatedObligationID    string
	RelatedObligationLabel string
	Emoji                  string
	Actor                  string
}

// ExpandJobs turns one form submission into the Cartesian product of
// selected projects and assignees, one independent job per pair. The
// obligation link only survives a single-project selection; with several
// projects the link would be ambiguous, so it is dropped. Pure function:
// no store mutation.
func (e Engine) ExpandJobs(form JobForm) []domain.Job {
	now := e.now()
	var due *dates.Flexible
	if form.DueDate != nil {
		due = dates.AtPtr(*form.DueDate)
	}
	priority := form.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	relatedID, relatedLabel := form.RelatedObligationID, form.RelatedObligationLabel
	if len(form.Projects) != 1 {
		relatedID, relatedLabel = "", ""
	}
	jobs := make([]domain.Job, 0, len(form.Projects)*len(form.Assignees))
	for _, project := range form.Projects {
		for _, assignee := range form.Assignees {
			jobs = append(jobs, domain.Job{
				ID:                     domain.NewID(),
				Title:                  form.Title,
				Description:            form.Description,
				Status:                 status.StoredPending,
				Priority:               priority,
				Assignee:               assignee,
				Project:                project,
				RelatedObligationID:    relatedID,
				RelatedObligationLabel: relatedLabel,
				DueDate:                due,
				Emoji:                  form.Emoji,
				CreatedBy:              form.Actor,
				History: []domain.HistoryEntry{
					{Action: domain.ActionCreated, User: form.Actor, Date: dates.At(now)},
				},
				Comments:  []domain.Comment{},
				CreatedAt: dates.At(now),
				UpdatedAt: dates.At(now),
			})
		}
	}
	return jobs
}

// CreateJobs validates the form, expands it and adds every job. Returns
// how many were created.
func (e Engine) CreateJobs(form JobForm) (int, error) {
	if strings.TrimSpace(form.Title) == "" {
		return 0, fmt.Errorf("iş başlığı gerekli")
	}
	if len(form.Projects) == 0 {
		return 0, fmt.Errorf("en az bir proje seçiniz")
	}
	if len(form.Assignees) == 0 {
		return 0, fmt.Errorf("en az bir kişi seçiniz")
	}
	jobs := e.ExpandJobs(form)
	for _, j := range jobs {
		e.Store.AddJob(j)
	}
	return len(jobs), nil
}

// ToggleJobStatus flips a job between completed and pending. Completing
// sets completedAt and appends a completed history entry; reopening clears
// completedAt and appends a reopened entry.
func (e Engine) ToggleJobStatus(id, actor string) (bool, error) {
	now := e.now()
	var completed bool
	ok := e.Store.UpdateJob(id, func(j *domain.Job) {
		if j.Status == status.StoredCompleted {
			j.Status = status.StoredPending
			j.CompletedAt = nil
			j.History = append(j.History, domain.HistoryEntry{
				Action: domain.ActionReopened, User: actor, Date: dates.At(now),
			})
		} else {
			j.Status = status.StoredCompleted
			j.CompletedAt = dates.AtPtr(now)
			j.History = append(j.History, domain.HistoryEntry{
				Action: domain.ActionCompleted, User: actor, Date: dates.At(now),
			})
			completed = true
		}
		j.UpdatedBy = actor
	})
	if !ok {
		return false, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return completed, nil
}

// DeleteJob removes a job permanently.
func (e Engine) DeleteJob(id string) error {
	if !e.Store.DeleteJob(id) {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

// CommentJob appends to a job's comment thread.
func (e Engine) CommentJob(id, actor, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("yorum boş olamaz")
	}
	if !e.Store.UpdateJob(id, func(j *domain.Job) {
		j.Comments = append(j.Comments, domain.Comment{
			User:      actor,
			Text:      text,
			Timestamp: dates.At(e.now()),
		})
		j.UpdatedBy = actor
	}) {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

// MergeResult summarizes a re-import.
type MergeResult struct {
	Total     int
	Preserved int
}

// MergeImport replaces the obligations collection with the imported rows,
// carrying id, stored status, comment thread and creation stamp over from
// any existing obligation that matches on the project+type+deadline-day
// tuple. Re-importing an unchanged sheet therefore keeps completed items
// completed and keeps their discussion.
func (e Engine) MergeImport(imported []domain.Obligation) MergeResult {
	type key struct {
		project  string
		kind     string
		deadline string
	}
	keyOf := func(o domain.Obligation) key {
		return key{
			project:  strings.ToLower(strings.TrimSpace(o.ProjectName)),
			kind:     strings.ToLower(strings.TrimSpace(o.ObligationType)),
			deadline: dates.StartOfDay(o.Deadline.Time).Format("2006-01-02"),
		}
	}
	existing := make(map[key]domain.Obligation, len(e.Store.Obligations))
	for _, o := range e.Store.Obligations {
		existing[keyOf(o)] = o
	}
	result := MergeResult{Total: len(imported)}
	merged := make([]domain.Obligation, 0, len(imported))
	for _, o := range imported {
		if prev, ok := existing[keyOf(o)]; ok {
			o.ID = prev.ID
			o.CreatedAt = prev.CreatedAt
			o.Comments = prev.Comments
			if prev.Status == status.StoredCompleted {
				o.Status = prev.Status
			}
			result.Preserved++
		}
		merged = append(merged, o)
	}
	e.Store.SetObligations(merged)
	return result
}

// ProjectUpsertOptions carries the editable project fields.
type ProjectUpsertOptions struct {
	Name        string
	Company     string
	Parent      string
	LicenseNo   string
	LicenseDate *time.Time
	Expert      *domain.ExpertContact
}

// UpsertProject updates the project matching the name case-insensitively
// or creates it. Reports whether a new project was created.
func (e Engine) UpsertProject(opts ProjectUpsertOptions) (domain.Project, bool, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Project{}, false, fmt.Errorf("proje adı gerekli")
	}
	apply := func(p *domain.Project) {
		if opts.Company != "" {
			p.Company = opts.Company
		}
		if opts.Parent != "" {
			p.Parent = opts.Parent
		}
		if opts.LicenseNo != "" {
			p.LicenseNo = opts.LicenseNo
		}
		if opts.LicenseDate != nil {
			p.LicenseDate = dates.AtPtr(*opts.LicenseDate)
		}
		if opts.Expert != nil {
			p.Expert = opts.Expert
		}
	}
	if prev, ok := e.Store.GetProjectByName(name); ok {
		e.Store.UpdateProject(prev.ID, apply)
		updated, _ := e.Store.GetProjectByName(name)
		return updated, false, nil
	}
	p := domain.Project{ID: domain.NewID(), Name: name}
	apply(&p)
	p.UpdatedAt = dates.AtPtr(e.now())
	e.Store.SetProjects(append(e.Store.Projects, p))
	return p, true, nil
}

// UpsertUser replaces or appends a profile keyed by email.
func (e Engine) UpsertUser(u domain.AppUser) error {
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("e-posta gerekli")
	}
	u.LastUpdated = dates.At(e.now())
	users := e.Store.Users
	for i := range users {
		if users[i].Email == u.Email {
			users[i] = u
			e.Store.SetUsers(users)
			return nil
		}
	}
	e.Store.SetUsers(append(users, u))
	return nil
}
