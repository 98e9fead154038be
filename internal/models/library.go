package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type LibraryItemType string

const (
	LibraryItemBook   LibraryItemType = "book"
	LibraryItemMovie  LibraryItemType = "movie"
	LibraryItemSeries LibraryItemType = "series"
	LibraryItemMusic  LibraryItemType = "music"
	LibraryItemLink   LibraryItemType = "link"
	LibraryItemNote   LibraryItemType = "note"
)

// LibraryItemTypes lists the six buckets in display order.
var LibraryItemTypes = []LibraryItemType{
	LibraryItemBook,
	LibraryItemMovie,
	LibraryItemSeries,
	LibraryItemMusic,
	LibraryItemLink,
	LibraryItemNote,
}

func IsValidLibraryItemType(t LibraryItemType) bool {
	for _, v := range LibraryItemTypes {
		if v == t {
			return true
		}
	}
	return false
}

type ConsumptionStatus string

const (
	ConsumptionNotStarted ConsumptionStatus = "not_started"
	ConsumptionInProgress ConsumptionStatus = "in_progress"
	ConsumptionCompleted  ConsumptionStatus = "completed"
)

func IsValidConsumptionStatus(s ConsumptionStatus) bool {
	switch s {
	case ConsumptionNotStarted, ConsumptionInProgress, ConsumptionCompleted:
		return true
	}
	return false
}

const (
	MinRating = 1
	MaxRating = 5

	RecentlyAddedLimit = 5
	TopRatedLimit      = 5
)

type LibraryItem struct {
	ID         uuid.UUID         `json:"id"`
	UserID     uuid.UUID         `json:"user_id"`
	Type       LibraryItemType   `json:"type"`
	Title      string            `json:"title"`
	Creator    *string           `json:"creator,omitempty"`
	CoverURL   *string           `json:"cover_url,omitempty"`
	URL        *string           `json:"url,omitempty"`
	Status     ConsumptionStatus `json:"status"`
	Rating     *int              `json:"rating,omitempty"`
	Notes      *string           `json:"notes,omitempty"`
	IsFavorite bool              `json:"is_favorite"`
	LikesCount int               `json:"likes_count"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type CreateLibraryItemParams struct {
	UserID     uuid.UUID
	Type       LibraryItemType
	Title      string
	Creator    *string
	CoverURL   *string
	URL        *string
	Status     ConsumptionStatus
	Rating     *int
	Notes      *string
	IsFavorite bool
}

type UpdateLibraryItemParams struct {
	Title      *string            `json:"title,omitempty"`
	Creator    *string            `json:"creator,omitempty"`
	CoverURL   *string            `json:"cover_url,omitempty"`
	URL        *string            `json:"url,omitempty"`
	Status     *ConsumptionStatus `json:"status,omitempty"`
	Rating     *int               `json:"rating,omitempty"`
	Notes      *string            `json:"notes,omitempty"`
	IsFavorite *bool              `json:"is_favorite,omitempty"`

	// ClearRating removes the rating. It cannot be combined with Rating.
	ClearRating bool `json:"clear_rating,omitempty"`
}

type LibraryItemComment struct {
	ID             uuid.UUID `json:"id"`
	ItemID         uuid.UUID `json:"item_id"`
	UserID         uuid.UUID `json:"user_id"`
	Content        string    `json:"content"`
	AuthorCasaName string    `json:"author_casa_name"`
	CreatedAt      time.Time `json:"created_at"`
}

type RecommendationStatus string

const (
	RecommendationPending  RecommendationStatus = "pending"
	RecommendationAccepted RecommendationStatus = "accepted"
	// RecommendationRejected is the state a declined recommendation ends in.
	RecommendationRejected RecommendationStatus = "rejected"
)

type LibraryRecommendation struct {
	ID           uuid.UUID            `json:"id"`
	FromUserID   uuid.UUID            `json:"from_user_id"`
	ToUserID     uuid.UUID            `json:"to_user_id"`
	ItemID       *uuid.UUID           `json:"item_id,omitempty"`
	ItemType     LibraryItemType      `json:"item_type"`
	ItemTitle    string               `json:"item_title"`
	ItemCreator  *string              `json:"item_creator,omitempty"`
	Note         *string              `json:"note,omitempty"`
	Status       RecommendationStatus `json:"status"`
	FromCasaName string               `json:"from_casa_name"`
	CreatedAt    time.Time            `json:"created_at"`
}

// LibraryStats is the in-memory aggregate rebuilt from a user's items.
type LibraryStats struct {
	TotalItems      int                               `json:"total_items"`
	ByType          map[LibraryItemType]int           `json:"by_type"`
	FavoritesByType map[LibraryItemType][]LibraryItem `json:"favorites_by_type"`
	RecentlyAdded   []LibraryItem                     `json:"recently_added"`
	TopRated        []LibraryItem                     `json:"top_rated"`
}

// BuildLibraryStats aggregates items. Recently added is computed by
// created_at descending; top rated keeps only rated items, highest first,
// preserving input order between equal ratings.
func BuildLibraryStats(items []LibraryItem) LibraryStats {
	stats := LibraryStats{
		TotalItems:      len(items),
		ByType:          make(map[LibraryItemType]int, len(LibraryItemTypes)),
		FavoritesByType: make(map[LibraryItemType][]LibraryItem, len(LibraryItemTypes)),
		RecentlyAdded:   []LibraryItem{},
		TopRated:        []LibraryItem{},
	}
	for _, t := range LibraryItemTypes {
		stats.ByType[t] = 0
		stats.FavoritesByType[t] = []LibraryItem{}
	}

	rated := make([]LibraryItem, 0, len(items))
	for _, item := range items {
		stats.ByType[item.Type]++
		if item.IsFavorite {
			stats.FavoritesByType[item.Type] = append(stats.FavoritesByType[item.Type], item)
		}
		if item.Rating != nil {
			rated = append(rated, item)
		}
	}

	recent := make([]LibraryItem, len(items))
	copy(recent, items)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > RecentlyAddedLimit {
		recent = recent[:RecentlyAddedLimit]
	}
	stats.RecentlyAdded = recent

	sort.SliceStable(rated, func(i, j int) bool {
		return *rated[i].Rating > *rated[j].Rating
	})
	if len(rated) > TopRatedLimit {
		rated = rated[:TopRatedLimit]
	}
	stats.TopRated = rated

	return stats
}

// GroupCollections partitions items into the six type buckets. Every bucket
// is present, empty ones included.
func GroupCollections(items []LibraryItem) map[LibraryItemType][]LibraryItem {
	out := make(map[LibraryItemType][]LibraryItem, len(LibraryItemTypes))
	for _, t := range LibraryItemTypes {
		out[t] = []LibraryItem{}
	}
	for _, item := range items {
		out[item.Type] = append(out[item.Type], item)
	}
	return out
}

type LibraryOverview struct {
	Stats                  LibraryStats                      `json:"stats"`
	Collections            map[LibraryItemType][]LibraryItem `json:"collections"`
	Achievements           []AchievementProgress             `json:"achievements"`
	Recommendations        []LibraryRecommendation           `json:"recommendations"`
	PendingRecommendations int                               `json:"pending_recommendations"`
}
