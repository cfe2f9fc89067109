// Package store holds the in-memory working set: the four collections and
// the last-update stamp everything else renders from. It is constructed at
// session start and passed explicitly to whoever needs it; there is no
// package-level instance. All mutation happens from one logical flow of
// control (CLI command or sync callback, never both at once), so the store
// takes no locks.
package store

import (
	"strings"
	"time"

	"suretakip/internal/dates"
	"suretakip/internal/domain"
)

// UnknownUser is returned by GetUserName when no email is given.
const UnknownUser = "Bilinmiyor"

// Store is the session working set.
type Store struct {
	Obligations []domain.Obligation
	Jobs        []domain.Job
	Projects    []domain.Project
	Users       []domain.AppUser

	// LastUpdate is the ISO timestamp of the most recent local mutation or
	// applied remote update. Zero means nothing loaded yet.
	LastUpdate time.Time

	// Now is injectable for tests.
	Now func() time.Time

	// onRefresh fires after the sync bridge replaces collections.
	onRefresh func()
}

// New returns an empty store.
func New() *Store {
	return &Store{Now: time.Now}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) touch() {
	s.LastUpdate = s.now()
}

// OnRefresh registers the callback invoked when remote data replaces the
// collections. The view layer re-renders from it.
func (s *Store) OnRefresh(fn func()) {
	s.onRefresh = fn
}

// NotifyRefresh fires the registered refresh callback, if any.
func (s *Store) NotifyRefresh() {
	if s.onRefresh != nil {
		s.onRefresh()
	}
}

// SetObligations replaces the obligations collection wholesale.
func (s *Store) SetObligations(obligations []domain.Obligation) {
	s.Obligations = obligations
	s.touch()
}

func (s *Store) SetJobs(jobs []domain.Job) {
	s.Jobs = jobs
	s.touch()
}

func (s *Store) SetProjects(projects []domain.Project) {
	s.Projects = projects
	s.touch()
}

func (s *Store) SetUsers(users []domain.AppUser) {
	s.Users = users
	s.touch()
}

// UpdateObligation shallow-merges fields into the obligation with the
// given id via the apply callback and stamps updatedAt. Returns false when
// the id is unknown; not finding a record is not an error here.
func (s *Store) UpdateObligation(id string, apply func(*domain.Obligation)) bool {
	for i := range s.Obligations {
		if s.Obligations[i].ID == id {
			apply(&s.Obligations[i])
			s.Obligations[i].UpdatedAt = dates.At(s.now())
			s.touch()
			return true
		}
	}
	return false
}

func (s *Store) UpdateJob(id string, apply func(*domain.Job)) bool {
	for i := range s.Jobs {
		if s.Jobs[i].ID == id {
			apply(&s.Jobs[i])
			s.Jobs[i].UpdatedAt = dates.At(s.now())
			s.touch()
			return true
		}
	}
	return false
}

func (s *Store) UpdateProject(id string, apply func(*domain.Project)) bool {
	for i := range s.Projects {
		if s.Projects[i].ID == id {
			apply(&s.Projects[i])
			s.Projects[i].UpdatedAt = dates.AtPtr(s.now())
			s.touch()
			return true
		}
	}
	return false
}

// GetObligation returns the obligation with the given id.
func (s *Store) GetObligation(id string) (domain.Obligation, bool) {
	for _, o := range s.Obligations {
		if o.ID == id {
			return o, true
		}
	}
	return domain.Obligation{}, false
}

func (s *Store) GetJob(id string) (domain.Job, bool) {
	for _, j := range s.Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return domain.Job{}, false
}

// GetProjectByName looks a project up case-insensitively.
func (s *Store) GetProjectByName(name string) (domain.Project, bool) {
	if name == "" {
		return domain.Project{}, false
	}
	for _, p := range s.Projects {
		if p.NameMatches(name) {
			return p, true
		}
	}
	return domain.Project{}, false
}

func (s *Store) AddJob(job domain.Job) {
	s.Jobs = append(s.Jobs, job)
	s.touch()
}

// DeleteJob removes the job with the given id. Reports whether anything
// was removed.
func (s *Store) DeleteJob(id string) bool {
	kept := s.Jobs[:0]
	for _, j := range s.Jobs {
		if j.ID != id {
			kept = append(kept, j)
		}
	}
	removed := len(kept) < len(s.Jobs)
	s.Jobs = kept
	if removed {
		s.touch()
	}
	return removed
}

// GetUserName resolves an email to a display name, falling back to the
// address local-part when no profile exists.
func (s *Store) GetUserName(email string) string {
	if email == "" {
		return UnknownUser
	}
	for _, u := range s.Users {
		if u.Email == email && u.DisplayName != "" {
			return u.DisplayName
		}
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// GetUserPhoto resolves an email to a profile photo URL, empty when the
// user has none.
func (s *Store) GetUserPhoto(email string) string {
	if email == "" {
		return ""
	}
	for _, u := range s.Users {
		if u.Email == email {
			return u.PhotoURL
		}
	}
	return ""
}

// Clear empties every collection and resets the update stamp.
func (s *Store) Clear() {
	s.Obligations = nil
	s.Jobs = nil
	s.Projects = nil
	s.Users = nil
	s.LastUpdate = time.Time{}
}
