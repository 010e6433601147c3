package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/itsmesammm/spinly/internal/catalog"
	"github.com/itsmesammm/spinly/internal/client"
	"github.com/itsmesammm/spinly/internal/model"
)

const (
	// One page of 50 results from the Discogs style search. More pages
	// cost a paced request each and rarely improve the candidate pool.
	similarSearchPages   = 1
	similarSearchPerPage = 50

	// A release with many styles makes the style query too narrow;
	// only the first few tags are used.
	maxStyleQueryTerms = 3

	// Candidates discovered through the external search must clear a
	// higher bar than ones already in the catalog.
	minScoreForCandidacy = 0.7
	localScoreThreshold  = 0.6

	// DefaultReleaseLimit caps how many ranked releases feed the final
	// track list when the caller does not say otherwise.
	DefaultReleaseLimit = 10
)

// RecommendationService generates track recommendations from a seed
// track by resolving it to a base release, collecting similar releases
// from Discogs and the local catalog, and flattening their tracks.
type RecommendationService struct {
	store   *catalog.Store
	discogs client.ReleaseSource
	music   *MusicDataService
}

func NewRecommendationService(store *catalog.Store, discogs client.ReleaseSource, music *MusicDataService) *RecommendationService {
	return &RecommendationService{store: store, discogs: discogs, music: music}
}

// ResolveBaseReleaseID finds the Discogs id of the most relevant release
// for a seed track. One free-text query, first result wins; no secondary
// ranking. The release is not hydrated here.
func (s *RecommendationService) ResolveBaseReleaseID(ctx context.Context, trackTitle string, artistName *string) (int64, error) {
	queryParts := []string{trackTitle}
	if artistName != nil && *artistName != "" {
		queryParts = append(queryParts, *artistName)
	}
	query := strings.Join(queryParts, " ")
	log.Printf("[Recommendation] searching Discogs for base release: %q", query)

	searchPage, err := s.discogs.SearchReleases(ctx, query, 1, similarSearchPerPage)
	if err != nil {
		return 0, fmt.Errorf("base release search: %w", err)
	}
	if len(searchPage.Results) == 0 {
		return 0, &NotFoundError{Resource: "discogs release for track", ID: trackTitle}
	}

	id := searchPage.Results[0].ID
	log.Printf("[Recommendation] base release candidate: discogs id %d", id)
	return id, nil
}

// TrackRecommendations runs the full pipeline for a seed track and
// returns the ordered recommended tracks.
func (s *RecommendationService) TrackRecommendations(ctx context.Context, trackTitle string, artistName *string, limit int) ([]model.Track, error) {
	if limit <= 0 {
		limit = DefaultReleaseLimit
	}

	baseDiscogsID, err := s.ResolveBaseReleaseID(ctx, trackTitle, artistName)
	if err != nil {
		return nil, err
	}

	base, err := s.music.GetOrCreateReleaseWithTracks(ctx, baseDiscogsID)
	if err != nil {
		return nil, fmt.Errorf("hydrate base release %d: %w", baseDiscogsID, err)
	}
	log.Printf("[Recommendation] base release: %q (id=%d, styles=%v)", base.Title, base.ID, base.Styles)

	candidates, err := s.collectCandidates(ctx, base, limit)
	if err != nil {
		return nil, err
	}

	return s.extractTracks(candidates), nil
}

// collectCandidates merges Discogs style-search candidates with local
// catalog candidates into one ranked, deduplicated, limited list.
// Deduplication is by internal release id and the first source to insert
// a release wins; a later observation with a different score is dropped.
func (s *RecommendationService) collectCandidates(ctx context.Context, base *model.Release, limit int) ([]model.Candidate, error) {
	candidates := newCandidateSet()

	// Source 1: Discogs style search. Skipped when the base release has
	// no styles to search by. Individual candidate failures are logged
	// and skipped; this stage never fails the pipeline.
	if len(base.Styles) > 0 {
		styles := base.Styles
		if len(styles) > maxStyleQueryTerms {
			log.Printf("[Recommendation] release has %d styles, querying with the first %d", len(styles), maxStyleQueryTerms)
			styles = styles[:maxStyleQueryTerms]
		}
		queryParts := make([]string, len(styles))
		for i, style := range styles {
			queryParts[i] = fmt.Sprintf("style:%q", style)
		}
		query := strings.Join(queryParts, " ")
		log.Printf("[Recommendation] Discogs style query: %s", query)

		results, err := s.discogs.SearchReleasesAllPages(ctx, query, similarSearchPages, similarSearchPerPage)
		if err != nil {
			return nil, fmt.Errorf("style search: %w", err)
		}
		log.Printf("[Recommendation] %d raw candidates from Discogs style search", len(results))

		for _, raw := range results {
			if raw.ID == 0 || raw.ID == base.DiscogsID {
				continue
			}
			release, err := s.music.GetOrCreateReleaseWithTracks(ctx, raw.ID)
			if err != nil {
				log.Printf("[Recommendation] skipping candidate %d: %v", raw.ID, err)
				continue
			}
			if release.ID == base.ID {
				continue
			}
			score := ReleaseSimilarity(base, release)
			if score >= minScoreForCandidacy {
				candidates.add(model.Candidate{Release: release, Score: score})
			}
		}
	} else {
		log.Printf("[Recommendation] base release has no styles, skipping Discogs style search")
	}

	// Source 2: local catalog scan.
	local, err := s.SimilarReleasesInCatalog(ctx, base, localScoreThreshold, 0)
	if err != nil {
		return nil, err
	}
	log.Printf("[Recommendation] %d candidates from local catalog above %.1f", len(local), localScoreThreshold)
	for _, c := range local {
		candidates.add(c)
	}

	return candidates.ranked(limit), nil
}

// SimilarReleasesInCatalog scores every catalog release against the base
// and returns those scoring above minScore, sorted descending. A limit
// of 0 means unlimited.
func (s *RecommendationService) SimilarReleasesInCatalog(ctx context.Context, base *model.Release, minScore float64, limit int) ([]model.Candidate, error) {
	releases, err := s.store.AllReleasesWithDetails(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog releases: %w", err)
	}

	var similar []model.Candidate
	for _, target := range releases {
		if target.ID == base.ID {
			continue
		}
		score := ReleaseSimilarity(base, target)
		if score > minScore {
			similar = append(similar, model.Candidate{Release: target, Score: score})
		}
	}

	sort.SliceStable(similar, func(i, j int) bool {
		return similar[i].Score > similar[j].Score
	})
	if limit > 0 && len(similar) > limit {
		similar = similar[:limit]
	}
	return similar, nil
}

// extractTracks flattens ranked releases into one ordered track list:
// all tracks of the top release first, then the next, and so on. A
// release with no hydrated tracks is skipped with a diagnostic.
func (s *RecommendationService) extractTracks(candidates []model.Candidate) []model.Track {
	var tracks []model.Track
	for _, c := range candidates {
		if len(c.Release.Tracks) == 0 {
			log.Printf("[Recommendation] release %q (id=%d) has no hydrated tracks, skipping", c.Release.Title, c.Release.ID)
			continue
		}
		tracks = append(tracks, c.Release.Tracks...)
	}
	return tracks
}

// candidateSet deduplicates candidates by internal release id. The first
// insertion of an id wins and insertion order breaks score ties.
type candidateSet struct {
	order []int64
	byID  map[int64]model.Candidate
}

func newCandidateSet() *candidateSet {
	return &candidateSet{byID: make(map[int64]model.Candidate)}
}

func (cs *candidateSet) add(c model.Candidate) {
	if _, exists := cs.byID[c.Release.ID]; exists {
		return
	}
	cs.byID[c.Release.ID] = c
	cs.order = append(cs.order, c.Release.ID)
}

// ranked returns the candidates sorted by score descending, ties kept in
// insertion order, truncated to limit.
func (cs *candidateSet) ranked(limit int) []model.Candidate {
	ranked := make([]model.Candidate, 0, len(cs.order))
	for _, id := range cs.order {
		ranked = append(ranked, cs.byID[id])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
