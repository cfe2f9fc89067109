package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"suretakip/internal/dates"
	"suretakip/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// masterDocumentID keys the single shared document row. Every client
// reads and writes the same row; concurrency is resolved by
// last-write-wins on its last_update stamp.
const masterDocumentID = "master"

type documentPayload struct {
	Obligations []domain.Obligation `json:"obligations"`
	Jobs        []domain.Job        `json:"jobs"`
	Projects    []domain.Project    `json:"projects"`
}

// GetDocument returns the master document, ErrNotFound before the first
// write.
func (r Repo) GetDocument(ctx context.Context) (domain.Document, error) {
	var payload, lastUpdate, updatedBy string
	err := r.DB.QueryRowContext(ctx, `SELECT payload,last_update,updated_by FROM documents WHERE id=?`, masterDocumentID).
		Scan(&payload, &lastUpdate, &updatedBy)
	if err == sql.ErrNoRows {
		return domain.Document{}, ErrNotFound
	}
	if err != nil {
		return domain.Document{}, err
	}
	var p documentPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return domain.Document{}, fmt.Errorf("decode document payload: %w", err)
	}
	return domain.Document{
		Obligations: p.Obligations,
		Jobs:        p.Jobs,
		Projects:    p.Projects,
		LastUpdate:  lastUpdate,
		UpdatedBy:   updatedBy,
	}, nil
}

// PutDocument replaces the master document within tx.
func (r Repo) PutDocument(ctx context.Context, tx *sql.Tx, doc domain.Document) error {
	payload, err := json.Marshal(documentPayload{
		Obligations: doc.Obligations,
		Jobs:        doc.Jobs,
		Projects:    doc.Projects,
	})
	if err != nil {
		return fmt.Errorf("encode document payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO documents(id,payload,last_update,updated_by) VALUES (?,?,?,?)
ON CONFLICT(id) DO UPDATE SET payload=excluded.payload, last_update=excluded.last_update, updated_by=excluded.updated_by`,
		masterDocumentID, string(payload), doc.LastUpdate, doc.UpdatedBy)
	return err
}

// DocumentStamp returns the current last_update without decoding the
// payload; the watch loop polls this.
func (r Repo) DocumentStamp(ctx context.Context) (string, error) {
	var stamp string
	err := r.DB.QueryRowContext(ctx, `SELECT last_update FROM documents WHERE id=?`, masterDocumentID).Scan(&stamp)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return stamp, err
}

// UpsertUser stores a profile keyed by email.
func (r Repo) UpsertUser(ctx context.Context, u domain.AppUser) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(email,display_name,title,photo_url,uid,last_updated) VALUES (?,?,?,?,?,?)
ON CONFLICT(email) DO UPDATE SET display_name=excluded.display_name, title=excluded.title, photo_url=excluded.photo_url, uid=excluded.uid, last_updated=excluded.last_updated`,
		u.Email, nullable(u.DisplayName), nullable(u.Title), nullable(u.PhotoURL), nullable(u.UID),
		u.LastUpdated.UTC().Format(time.RFC3339Nano))
	return err
}

// GetUser returns one profile by email.
func (r Repo) GetUser(ctx context.Context, email string) (domain.AppUser, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT email,COALESCE(display_name,''),COALESCE(title,''),COALESCE(photo_url,''),COALESCE(uid,''),last_updated FROM users WHERE email=?`, email)
	u, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return domain.AppUser{}, ErrNotFound
	}
	return u, err
}

// ListUsers returns all profiles ordered by email.
func (r Repo) ListUsers(ctx context.Context) ([]domain.AppUser, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT email,COALESCE(display_name,''),COALESCE(title,''),COALESCE(photo_url,''),COALESCE(uid,''),last_updated FROM users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AppUser
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func scanUser(scan func(...any) error) (domain.AppUser, error) {
	var u domain.AppUser
	var lastUpdated string
	if err := scan(&u.Email, &u.DisplayName, &u.Title, &u.PhotoURL, &u.UID, &lastUpdated); err != nil {
		return domain.AppUser{}, err
	}
	if t, ok := dates.ParseString(lastUpdated); ok {
		u.LastUpdated = dates.At(t)
	}
	return u, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
