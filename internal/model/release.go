package model

// Artist is a performing or producing artist known to the catalog.
// DiscogsID is nil for artists Discogs reports with id 0; those are
// identified by name only.
type Artist struct {
	ID        int64  `json:"id"`
	DiscogsID *int64 `json:"discogsId,omitempty"`
	Name      string `json:"name"`
}

// Release is a catalog release. DiscogsID is unique and never changes
// once assigned. Artist and Tracks are populated by hydrating loads.
type Release struct {
	ID        int64    `json:"id"`
	DiscogsID int64    `json:"discogsId"`
	Title     string   `json:"title"`
	Year      *int     `json:"year,omitempty"`
	Label     *string  `json:"label,omitempty"`
	Styles    []string `json:"styles"`
	ArtistID  *int64   `json:"artistId,omitempty"`
	Artist    *Artist  `json:"artist,omitempty"`
	Tracks    []Track  `json:"tracks,omitempty"`
}

// Track is a single track on a release. Artists carries the contributing
// artists; composing a display name from them is the caller's concern.
type Track struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Position  string   `json:"position,omitempty"`
	ReleaseID int64    `json:"releaseId"`
	Artists   []Artist `json:"artists,omitempty"`
	Release   *Release `json:"-"`
}

// Candidate pairs a release with its similarity score during aggregation.
// Candidates are transient and never persisted.
type Candidate struct {
	Release *Release
	Score   float64
}
