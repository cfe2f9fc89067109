// Package seed holds the bundled starter dataset, the last fallback when
// neither the server nor the local cache has anything to show.
package seed

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"suretakip/internal/dates"
	"suretakip/internal/domain"
	"suretakip/internal/status"
)

//go:embed seed.yaml
var seedYAML []byte

type seedObligation struct {
	Project     string `yaml:"project"`
	Link        string `yaml:"link"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Deadline    string `yaml:"deadline"`
	Notes       string `yaml:"notes"`
}

type seedProject struct {
	Name    string `yaml:"name"`
	Company string `yaml:"company"`
	Parent  string `yaml:"parent"`
}

type seedFile struct {
	Obligations []seedObligation `yaml:"obligations"`
	Projects    []seedProject    `yaml:"projects"`
}

// Load decodes the bundled dataset. Rows with unparseable deadlines are
// dropped rather than defaulted; the seed must not invent due dates.
func Load(now func() time.Time) ([]domain.Obligation, []domain.Project, error) {
	var f seedFile
	if err := yaml.Unmarshal(seedYAML, &f); err != nil {
		return nil, nil, fmt.Errorf("decode seed dataset: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	stamp := dates.At(now())
	var obligations []domain.Obligation
	for _, row := range f.Obligations {
		deadline, ok := dates.ParseString(row.Deadline)
		if !ok {
			continue
		}
		obligations = append(obligations, domain.Obligation{
			ID:                    domain.NewID(),
			ProjectName:           row.Project,
			ProjectLink:           row.Link,
			ObligationType:        row.Type,
			ObligationDescription: row.Description,
			Deadline:              dates.At(deadline),
			Notes:                 row.Notes,
			Status:                status.StoredPending,
			CreatedAt:             stamp,
			UpdatedAt:             stamp,
		})
	}
	var projects []domain.Project
	for _, row := range f.Projects {
		projects = append(projects, domain.Project{
			ID:      domain.NewID(),
			Name:    row.Name,
			Company: row.Company,
			Parent:  row.Parent,
		})
	}
	return obligations, projects, nil
}
