package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/itsmesammm/spinly/internal/model"
)

const releaseColumns = "id, discogs_id, title, year, label, styles_json, artist_id"

// GetArtistByDiscogsID returns the artist with the given Discogs id, or
// nil when no such artist exists.
func (s *Store) GetArtistByDiscogsID(ctx context.Context, discogsID int64) (*model.Artist, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, discogs_id, name FROM artists WHERE discogs_id = ?`, discogsID)
	return scanArtist(row)
}

// GetArtistByName returns the first artist matching the name, or nil.
func (s *Store) GetArtistByName(ctx context.Context, name string) (*model.Artist, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, discogs_id, name FROM artists WHERE name = ? LIMIT 1`, name)
	return scanArtist(row)
}

// CreateArtist inserts a new artist. When discogsID collides with an
// existing row the insert is a no-op and the existing artist is returned,
// so concurrent hydrations of the same artist cannot produce duplicates.
func (s *Store) CreateArtist(ctx context.Context, name string, discogsID *int64) (*model.Artist, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO artists (name, discogs_id) VALUES (?, ?)
         ON CONFLICT(discogs_id) DO NOTHING`,
		name, nullableInt64(discogsID))
	if err != nil {
		return nil, fmt.Errorf("insert artist: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 && discogsID != nil {
		return s.GetArtistByDiscogsID(ctx, *discogsID)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.Artist{ID: id, DiscogsID: discogsID, Name: name}, nil
}

// SetArtistDiscogsID backfills a Discogs id on an artist found by name.
func (s *Store) SetArtistDiscogsID(ctx context.Context, artistID, discogsID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE artists SET discogs_id = ? WHERE id = ? AND discogs_id IS NULL`,
		discogsID, artistID)
	if err != nil {
		return fmt.Errorf("set artist discogs id: %w", err)
	}
	return nil
}

// GetReleaseByDiscogsID returns a fully hydrated release, or nil when
// the catalog has no release with the given Discogs id.
func (s *Store) GetReleaseByDiscogsID(ctx context.Context, discogsID int64) (*model.Release, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+releaseColumns+` FROM releases WHERE discogs_id = ?`, discogsID)
	release, err := scanRelease(row)
	if err != nil || release == nil {
		return release, err
	}
	if err := s.hydrateReleases(ctx, []*model.Release{release}); err != nil {
		return nil, err
	}
	return release, nil
}

// GetReleaseByID returns a fully hydrated release by internal id, or nil.
func (s *Store) GetReleaseByID(ctx context.Context, id int64) (*model.Release, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+releaseColumns+` FROM releases WHERE id = ?`, id)
	release, err := scanRelease(row)
	if err != nil || release == nil {
		return release, err
	}
	if err := s.hydrateReleases(ctx, []*model.Release{release}); err != nil {
		return nil, err
	}
	return release, nil
}

// CreateRelease inserts a release. The unique constraint on discogs_id
// makes the insert idempotent: when another writer got there first the
// existing hydrated row is returned instead.
func (s *Store) CreateRelease(ctx context.Context, release *model.Release) (*model.Release, error) {
	stylesJSON, err := json.Marshal(release.Styles)
	if err != nil {
		return nil, fmt.Errorf("marshal styles: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO releases (discogs_id, title, year, label, styles_json, artist_id)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(discogs_id) DO NOTHING`,
		release.DiscogsID,
		release.Title,
		nullableInt(release.Year),
		nullableString(release.Label),
		string(stylesJSON),
		nullableInt64(release.ArtistID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert release: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return s.GetReleaseByDiscogsID(ctx, release.DiscogsID)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	release.ID = id
	return release, nil
}

// CreateTrack inserts a track and links its contributing artists.
func (s *Store) CreateTrack(ctx context.Context, track *model.Track, artistIDs []int64) (*model.Track, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tracks (title, position, release_id) VALUES (?, ?, ?)`,
		track.Title, track.Position, track.ReleaseID)
	if err != nil {
		return nil, fmt.Errorf("insert track: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	track.ID = id

	for _, artistID := range artistIDs {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO track_artists (track_id, artist_id) VALUES (?, ?)
             ON CONFLICT(track_id, artist_id) DO NOTHING`,
			id, artistID)
		if err != nil {
			return nil, fmt.Errorf("link track artist: %w", err)
		}
	}
	return track, nil
}

// AllReleasesWithDetails returns every release in the catalog, hydrated
// with its primary artist and its tracks' artists.
func (s *Store) AllReleasesWithDetails(ctx context.Context) ([]*model.Release, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+releaseColumns+` FROM releases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	defer rows.Close()

	var releases []*model.Release
	for rows.Next() {
		release, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		releases = append(releases, release)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate releases: %w", err)
	}

	if err := s.hydrateReleases(ctx, releases); err != nil {
		return nil, err
	}
	return releases, nil
}

// TracksByIDs resolves tracks in the order the ids are given, silently
// dropping ids that no longer resolve. Each track carries its artists
// and a minimal parent release reference.
func (s *Store) TracksByIDs(ctx context.Context, ids []int64) ([]model.Track, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.title, t.position, t.release_id, r.discogs_id, r.title
         FROM tracks t JOIN releases r ON r.id = t.release_id
         WHERE t.id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("tracks by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]model.Track, len(ids))
	for rows.Next() {
		var t model.Track
		var releaseDiscogsID int64
		var releaseTitle string
		if err := rows.Scan(&t.ID, &t.Title, &t.Position, &t.ReleaseID, &releaseDiscogsID, &releaseTitle); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		t.Release = &model.Release{ID: t.ReleaseID, DiscogsID: releaseDiscogsID, Title: releaseTitle}
		byID[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}

	artistsByTrack, err := s.trackArtists(ctx, keysOf(byID))
	if err != nil {
		return nil, err
	}

	ordered := make([]model.Track, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			continue
		}
		t.Artists = artistsByTrack[id]
		ordered = append(ordered, t)
	}
	return ordered, nil
}

// hydrateReleases attaches primary artists and tracks (with their
// artists) to the given releases using batched queries.
func (s *Store) hydrateReleases(ctx context.Context, releases []*model.Release) error {
	if len(releases) == 0 {
		return nil
	}

	releaseIDs := make([]any, 0, len(releases))
	artistIDs := make([]any, 0, len(releases))
	seenArtists := make(map[int64]bool)
	for _, r := range releases {
		releaseIDs = append(releaseIDs, r.ID)
		if r.ArtistID != nil && !seenArtists[*r.ArtistID] {
			seenArtists[*r.ArtistID] = true
			artistIDs = append(artistIDs, *r.ArtistID)
		}
	}

	artists := make(map[int64]*model.Artist)
	if len(artistIDs) > 0 {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, discogs_id, name FROM artists WHERE id IN (`+placeholders(len(artistIDs))+`)`,
			artistIDs...)
		if err != nil {
			return fmt.Errorf("load release artists: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			artist, err := scanArtist(rows)
			if err != nil {
				return err
			}
			artists[artist.ID] = artist
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate release artists: %w", err)
		}
	}

	trackRows, err := s.db.QueryContext(ctx,
		`SELECT id, title, position, release_id FROM tracks
         WHERE release_id IN (`+placeholders(len(releaseIDs))+`) ORDER BY id`,
		releaseIDs...)
	if err != nil {
		return fmt.Errorf("load tracks: %w", err)
	}
	defer trackRows.Close()

	tracksByRelease := make(map[int64][]model.Track)
	var trackIDs []int64
	for trackRows.Next() {
		var t model.Track
		if err := trackRows.Scan(&t.ID, &t.Title, &t.Position, &t.ReleaseID); err != nil {
			return fmt.Errorf("scan track: %w", err)
		}
		tracksByRelease[t.ReleaseID] = append(tracksByRelease[t.ReleaseID], t)
		trackIDs = append(trackIDs, t.ID)
	}
	if err := trackRows.Err(); err != nil {
		return fmt.Errorf("iterate tracks: %w", err)
	}

	artistsByTrack, err := s.trackArtists(ctx, trackIDs)
	if err != nil {
		return err
	}

	for _, r := range releases {
		if r.ArtistID != nil {
			r.Artist = artists[*r.ArtistID]
		}
		tracks := tracksByRelease[r.ID]
		for i := range tracks {
			tracks[i].Artists = artistsByTrack[tracks[i].ID]
		}
		r.Tracks = tracks
	}
	return nil
}

// trackArtists loads contributing artists for a set of track ids.
func (s *Store) trackArtists(ctx context.Context, trackIDs []int64) (map[int64][]model.Artist, error) {
	result := make(map[int64][]model.Artist)
	if len(trackIDs) == 0 {
		return result, nil
	}

	args := make([]any, len(trackIDs))
	for i, id := range trackIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ta.track_id, a.id, a.discogs_id, a.name
         FROM track_artists ta JOIN artists a ON a.id = ta.artist_id
         WHERE ta.track_id IN (`+placeholders(len(trackIDs))+`)
         ORDER BY ta.track_id, a.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("load track artists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var trackID int64
		var artist model.Artist
		var discogsID sql.NullInt64
		if err := rows.Scan(&trackID, &artist.ID, &discogsID, &artist.Name); err != nil {
			return nil, fmt.Errorf("scan track artist: %w", err)
		}
		if discogsID.Valid {
			artist.DiscogsID = &discogsID.Int64
		}
		result[trackID] = append(result[trackID], artist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate track artists: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtist(row rowScanner) (*model.Artist, error) {
	var artist model.Artist
	var discogsID sql.NullInt64
	err := row.Scan(&artist.ID, &discogsID, &artist.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan artist: %w", err)
	}
	if discogsID.Valid {
		artist.DiscogsID = &discogsID.Int64
	}
	return &artist, nil
}

func scanRelease(row rowScanner) (*model.Release, error) {
	var release model.Release
	var year sql.NullInt64
	var label sql.NullString
	var stylesJSON string
	var artistID sql.NullInt64

	err := row.Scan(&release.ID, &release.DiscogsID, &release.Title, &year, &label, &stylesJSON, &artistID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan release: %w", err)
	}

	if year.Valid {
		y := int(year.Int64)
		release.Year = &y
	}
	if label.Valid {
		release.Label = &label.String
	}
	if artistID.Valid {
		release.ArtistID = &artistID.Int64
	}
	if err := json.Unmarshal([]byte(stylesJSON), &release.Styles); err != nil {
		return nil, fmt.Errorf("unmarshal styles: %w", err)
	}
	return &release, nil
}

func keysOf(m map[int64]model.Track) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
