// Package domain holds the record types shared by every client of the
// master document. JSON field names are the wire contract: the web and
// mobile clients read the same document, so they must not drift.
package domain

import (
	"strings"

	"github.com/oklog/ulid/v2"

	"suretakip/internal/dates"
)

// NewID returns a ULID: millisecond timestamp plus random suffix, sortable
// and collision-resistant across clients generating ids offline.
func NewID() string {
	return ulid.Make().String()
}

// Comment is a dated note on an obligation or a job.
type Comment struct {
	User      string         `json:"user"`
	Text      string         `json:"text"`
	Timestamp dates.Flexible `json:"timestamp"`
}

// HistoryEntry records a lifecycle action on a job.
type HistoryEntry struct {
	Action string         `json:"action"`
	User   string         `json:"user"`
	Date   dates.Flexible `json:"date"`
}

// History actions.
const (
	ActionCreated   = "created"
	ActionCompleted = "completed"
	ActionReopened  = "reopened"
)

// Obligation is a regulatory deadline item. Obligations are never hard
// deleted in normal flow; spreadsheet re-imports match them by
// project+type+deadline tuple to keep status and comments.
type Obligation struct {
	ID                    string         `json:"id"`
	ProjectName           string         `json:"projectName"`
	ProjectLink           string         `json:"projectLink,omitempty"`
	ObligationType        string         `json:"obligationType"`
	ObligationDescription string         `json:"obligationDescription"`
	Deadline              dates.Flexible `json:"deadline"`
	Notes                 string         `json:"notes,omitempty"`
	Status                string         `json:"status"`
	Comments              []Comment      `json:"comments,omitempty"`
	CreatedAt             dates.Flexible `json:"createdAt"`
	UpdatedAt             dates.Flexible `json:"updatedAt"`
}

// Job is an ad-hoc task assigned to a staff member. Unlike obligations,
// jobs are hard deleted.
type Job struct {
	ID                     string          `json:"id"`
	Title                  string          `json:"title"`
	Description            string          `json:"description,omitempty"`
	Status                 string          `json:"status"`
	Priority               string          `json:"priority"`
	Assignee               string          `json:"assignee,omitempty"`
	Project                string          `json:"project,omitempty"`
	RelatedObligationID    string          `json:"relatedObligationId,omitempty"`
	RelatedObligationLabel string          `json:"relatedObligationLabel,omitempty"`
	DueDate                *dates.Flexible `json:"dueDate,omitempty"`
	CompletedAt            *dates.Flexible `json:"completedAt,omitempty"`
	Comments               []Comment       `json:"comments,omitempty"`
	History                []HistoryEntry  `json:"history,omitempty"`
	Emoji                  string          `json:"emoji,omitempty"`
	CreatedBy              string          `json:"createdBy,omitempty"`
	UpdatedBy              string          `json:"updatedBy,omitempty"`
	CreatedAt              dates.Flexible  `json:"createdAt"`
	UpdatedAt              dates.Flexible  `json:"updatedAt"`
}

// Job priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// ExpertContact is the licensing expert assigned to a project.
type ExpertContact struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Project is a reference definition. Obligations and jobs point at it by
// name string, case-insensitively; there is no referential integrity.
type Project struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Company     string          `json:"company,omitempty"`
	Parent      string          `json:"parent,omitempty"`
	LicenseNo   string          `json:"licenseNo,omitempty"`
	LicenseDate *dates.Flexible `json:"licenseDate,omitempty"`
	Expert      *ExpertContact  `json:"expert,omitempty"`
	UpdatedAt   *dates.Flexible `json:"updatedAt,omitempty"`
}

// NameMatches reports whether the project is known under the given name.
func (p Project) NameMatches(name string) bool {
	return strings.EqualFold(p.Name, name)
}

// AppUser is a profile record keyed by email.
type AppUser struct {
	Email       string         `json:"email"`
	DisplayName string         `json:"displayName,omitempty"`
	Title       string         `json:"title,omitempty"`
	PhotoURL    string         `json:"photoURL,omitempty"`
	UID         string         `json:"uid,omitempty"`
	LastUpdated dates.Flexible `json:"lastUpdated"`
}

// Document is the single authoritative remote document. LastUpdate stays a
// raw ISO string on the wire; the sync bridge parses it only to compare.
type Document struct {
	Obligations []Obligation `json:"obligations"`
	Jobs        []Job        `json:"jobs"`
	Projects    []Project    `json:"projects"`
	LastUpdate  string       `json:"lastUpdate"`
	UpdatedBy   string       `json:"updatedBy"`
}
