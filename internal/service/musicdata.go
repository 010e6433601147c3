package service

import (
	"context"
	"fmt"
	"log"

	"github.com/itsmesammm/spinly/internal/catalog"
	"github.com/itsmesammm/spinly/internal/client"
	"github.com/itsmesammm/spinly/internal/model"
)

// MusicDataService hydrates external release metadata into the catalog.
// Releases and artists are created lazily: look up by Discogs id, then
// by name, then create. Inserts are idempotent at the store level, so
// two jobs discovering the same release at once converge on one row.
type MusicDataService struct {
	store   *catalog.Store
	discogs client.ReleaseSource
}

func NewMusicDataService(store *catalog.Store, discogs client.ReleaseSource) *MusicDataService {
	return &MusicDataService{store: store, discogs: discogs}
}

// GetOrCreateReleaseWithTracks returns the fully hydrated release for a
// Discogs id, fetching and persisting it (primary artist, tracks, track
// artists) when the catalog does not have it yet.
func (s *MusicDataService) GetOrCreateReleaseWithTracks(ctx context.Context, discogsID int64) (*model.Release, error) {
	release, err := s.store.GetReleaseByDiscogsID(ctx, discogsID)
	if err != nil {
		return nil, err
	}
	if release != nil {
		log.Printf("[MusicData] found existing release in catalog: %s", release.Title)
		return release, nil
	}

	log.Printf("[MusicData] fetching release %d from Discogs", discogsID)
	data, err := s.discogs.GetRelease(ctx, discogsID)
	if err != nil {
		return nil, fmt.Errorf("fetch release %d: %w", discogsID, err)
	}

	var mainArtist *model.Artist
	if len(data.Artists) > 0 {
		mainArtist, err = s.getOrCreateArtist(ctx, data.Artists[0])
		if err != nil {
			return nil, err
		}
	}

	newRelease := &model.Release{
		DiscogsID: discogsID,
		Title:     data.Title,
		Styles:    data.Styles,
	}
	if newRelease.Styles == nil {
		newRelease.Styles = []string{}
	}
	if data.Year != 0 {
		year := data.Year
		newRelease.Year = &year
	}
	if len(data.Labels) > 0 {
		label := data.Labels[0].Name
		newRelease.Label = &label
	}
	if mainArtist != nil {
		newRelease.ArtistID = &mainArtist.ID
	}

	stored, err := s.store.CreateRelease(ctx, newRelease)
	if err != nil {
		return nil, fmt.Errorf("create release %d: %w", discogsID, err)
	}
	if stored.ID != newRelease.ID {
		// Lost the insert race; the winner already hydrated tracks.
		return stored, nil
	}

	for _, item := range data.Tracklist {
		if item.Type != "track" {
			continue
		}
		track := &model.Track{
			Title:     item.Title,
			Position:  item.Position,
			ReleaseID: stored.ID,
		}

		var artistIDs []int64
		if len(item.Artists) > 0 {
			for _, trackArtist := range item.Artists {
				artist, err := s.getOrCreateArtist(ctx, trackArtist)
				if err != nil {
					return nil, err
				}
				artistIDs = append(artistIDs, artist.ID)
			}
		} else if mainArtist != nil {
			artistIDs = append(artistIDs, mainArtist.ID)
		}

		if _, err := s.store.CreateTrack(ctx, track, artistIDs); err != nil {
			return nil, fmt.Errorf("create track %q: %w", item.Title, err)
		}
	}

	log.Printf("[MusicData] saved new release: id=%d title=%q", stored.ID, stored.Title)

	// Re-read so the returned release carries its tracks and artist.
	return s.store.GetReleaseByDiscogsID(ctx, discogsID)
}

// getOrCreateArtist resolves an artist reference: by Discogs id first,
// then by name (backfilling a missing Discogs id), then by creating it.
// Discogs reports id 0 for unlinked artists; treat that as no id.
func (s *MusicDataService) getOrCreateArtist(ctx context.Context, data client.ReleaseArtist) (*model.Artist, error) {
	var discogsID *int64
	if data.ID != 0 {
		id := data.ID
		discogsID = &id
	}

	if discogsID != nil {
		artist, err := s.store.GetArtistByDiscogsID(ctx, *discogsID)
		if err != nil {
			return nil, err
		}
		if artist != nil {
			return artist, nil
		}
	}

	artist, err := s.store.GetArtistByName(ctx, data.Name)
	if err != nil {
		return nil, err
	}
	if artist != nil {
		if artist.DiscogsID == nil && discogsID != nil {
			if err := s.store.SetArtistDiscogsID(ctx, artist.ID, *discogsID); err != nil {
				return nil, err
			}
			artist.DiscogsID = discogsID
		}
		return artist, nil
	}

	return s.store.CreateArtist(ctx, data.Name, discogsID)
}
