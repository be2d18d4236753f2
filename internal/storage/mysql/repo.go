package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"travelhub/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valNonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func valPositive(n int) any {
	if n <= 0 {
		return nil
	}
	return n
}

func valTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func jsonList(v []string) any {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// Repo persists platform snapshots and the sync log.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// SaveSnapshot writes the location, its reviews and its photos in one transaction.
func (r *Repo) SaveSnapshot(ctx context.Context, internalID string, d domain.PlatformData) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	l := d.Location
	var lat, lon any
	if l.Coords != nil {
		lat, lon = l.Coords.Lat, l.Coords.Lon
	}
	if _, err := tx.ExecContext(ctx, upsertLocationSQL,
		internalID,
		string(l.Platform),
		l.ExternalID,
		valNonEmpty(l.Name),
		valNonEmpty(l.Address),
		lat, lon,
		valF64(l.Rating),
		l.ReviewCount,
		valPositive(l.PriceLevel),
		valNonEmpty(l.Phone),
		valNonEmpty(l.Website),
		valNonEmpty(l.WebURL),
		jsonList(l.Categories),
		jsonList(l.OpeningHours),
		valJSON(l.RawJSON),
	); err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}

	if err := upsertReviews(ctx, tx, internalID, l.Platform, d.Reviews); err != nil {
		return fmt.Errorf("upsert reviews: %w", err)
	}
	if err := upsertPhotos(ctx, tx, internalID, l.Platform, d.Photos); err != nil {
		return fmt.Errorf("upsert photos: %w", err)
	}
	return tx.Commit()
}

func upsertReviews(ctx context.Context, tx *sql.Tx, internalID string, p domain.Platform, rs []domain.Review) error {
	if len(rs) == 0 {
		return nil
	}
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*10)
	for _, rv := range rs {
		values = append(values, "(?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			internalID,
			string(p),
			rv.SourceID,
			valStr(rv.Author),
			valF64(rv.Rating),
			valStr(rv.Lang),
			valStr(rv.Title),
			valStr(rv.Text),
			valTime(rv.PublishedAt),
			valJSON(rv.RawJSON),
		)
	}
	_, err := tx.ExecContext(ctx, insertReviewsPrefix+strings.Join(values, ",")+insertReviewsOnDup, args...)
	return err
}

func upsertPhotos(ctx context.Context, tx *sql.Tx, internalID string, p domain.Platform, ps []domain.Photo) error {
	if len(ps) == 0 {
		return nil
	}
	values := make([]string, 0, len(ps))
	args := make([]any, 0, len(ps)*7)
	for _, ph := range ps {
		values = append(values, "(?,?,?,?,?,?,?)")
		args = append(args,
			internalID,
			string(p),
			ph.SourceID,
			ph.URL,
			valStr(ph.Caption),
			valPositive(ph.Width),
			valPositive(ph.Height),
		)
	}
	_, err := tx.ExecContext(ctx, insertPhotosPrefix+strings.Join(values, ",")+insertPhotosOnDup, args...)
	return err
}

func (r *Repo) LogSync(ctx context.Context, e domain.SyncLogEntry) error {
	_, err := r.db.ExecContext(ctx, insertSyncLogSQL,
		e.RunID,
		e.InternalID,
		string(e.Platform),
		e.ExternalID,
		e.Success,
		valNonEmpty(e.Error),
		e.Reviews,
		e.Photos,
		e.Duration.Milliseconds(),
	)
	return err
}

func (r *Repo) SyncCounters(ctx context.Context) (map[domain.Platform]domain.PlatformCounters, error) {
	rows, err := r.db.QueryContext(ctx, syncCountersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[domain.Platform]domain.PlatformCounters{}
	for rows.Next() {
		var (
			platform string
			c        domain.PlatformCounters
			last     sql.NullTime
		)
		if err := rows.Scan(&platform, &c.Attempts, &c.Successes, &c.Failures, &last); err != nil {
			return nil, err
		}
		if last.Valid {
			t := last.Time
			c.LastSync = &t
		}
		out[domain.Platform(platform)] = c
	}
	return out, rows.Err()
}

// Snapshot reads back what the last successful sync of one platform stored.
func (r *Repo) Snapshot(ctx context.Context, internalID string, p domain.Platform) (domain.PlatformData, error) {
	d := domain.PlatformData{
		Location: domain.PlatformLocation{Platform: p},
		Reviews:  []domain.Review{},
		Photos:   []domain.Photo{},
	}

	var (
		name, address, phone, website, webURL sql.NullString
		lat, lon, rating                      sql.NullFloat64
		price                                 sql.NullInt64
		categories, hours                     []byte
	)
	err := r.db.QueryRowContext(ctx, getLocationSQL, internalID, string(p)).Scan(
		&d.Location.ExternalID, &name, &address, &lat, &lon, &rating,
		&d.Location.ReviewCount, &price, &phone, &website, &webURL, &categories, &hours,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PlatformData{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PlatformData{}, err
	}
	l := &d.Location
	l.Name, l.Address, l.Phone, l.Website, l.WebURL = name.String, address.String, phone.String, website.String, webURL.String
	if lat.Valid && lon.Valid {
		l.Coords = &domain.GeoPoint{Lat: lat.Float64, Lon: lon.Float64}
	}
	if rating.Valid {
		f := rating.Float64
		l.Rating = &f
	}
	l.PriceLevel = int(price.Int64)
	_ = json.Unmarshal(categories, &l.Categories)
	_ = json.Unmarshal(hours, &l.OpeningHours)

	if d.Reviews, err = r.reviews(ctx, internalID, p); err != nil {
		return domain.PlatformData{}, err
	}
	if d.Photos, err = r.photos(ctx, internalID, p); err != nil {
		return domain.PlatformData{}, err
	}
	return d, nil
}

func (r *Repo) reviews(ctx context.Context, internalID string, p domain.Platform) ([]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, internalID, string(p))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Review{}
	for rows.Next() {
		rv := domain.Review{Platform: p, LocationID: internalID}
		var (
			author, lang, title, text sql.NullString
			rating                    sql.NullFloat64
			published                 sql.NullTime
		)
		if err := rows.Scan(&rv.SourceID, &author, &rating, &lang, &title, &text, &published); err != nil {
			return nil, err
		}
		rv.Author, rv.Lang, rv.Title, rv.Text = nullStr(author), nullStr(lang), nullStr(title), nullStr(text)
		if rating.Valid {
			f := rating.Float64
			rv.Rating = &f
		}
		if published.Valid {
			t := published.Time
			rv.PublishedAt = &t
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *Repo) photos(ctx context.Context, internalID string, p domain.Platform) ([]domain.Photo, error) {
	rows, err := r.db.QueryContext(ctx, listPhotosSQL, internalID, string(p))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Photo{}
	for rows.Next() {
		ph := domain.Photo{Platform: p, LocationID: internalID}
		var (
			caption       sql.NullString
			width, height sql.NullInt64
		)
		if err := rows.Scan(&ph.SourceID, &ph.URL, &caption, &width, &height); err != nil {
			return nil, err
		}
		ph.Caption = nullStr(caption)
		ph.Width, ph.Height = int(width.Int64), int(height.Int64)
		out = append(out, ph)
	}
	return out, rows.Err()
}

func nullStr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
