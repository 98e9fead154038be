package gallery

import "sort"

const recentItemsLimit = 6

type Stats struct {
	TotalAlbums    int    `json:"total_albums"`
	TotalItems     int    `json:"total_items"`
	TotalPhotos    int    `json:"total_photos"`
	TotalVideos    int    `json:"total_videos"`
	TotalViews     int    `json:"total_views"`
	TotalLikes     int    `json:"total_likes"`
	TotalComments  int    `json:"total_comments"`
	FeaturedAlbums int    `json:"featured_albums"`
	MostLikedItem  *Item  `json:"most_liked_item,omitempty"`
	RecentItems    []Item `json:"recent_items"`
}

func ComputeStats(s State) Stats {
	st := Stats{
		TotalAlbums: len(s.Albums),
		TotalItems:  len(s.Items),
		RecentItems: []Item{},
	}
	for _, a := range s.Albums {
		st.TotalViews += a.ViewCount
		if a.IsFeatured {
			st.FeaturedAlbums++
		}
	}
	for i, it := range s.Items {
		switch it.Type {
		case ItemPhoto:
			st.TotalPhotos++
		case ItemVideo:
			st.TotalVideos++
		}
		st.TotalViews += it.Views
		st.TotalLikes += it.Likes
		st.TotalComments += it.Comments
		if st.MostLikedItem == nil || it.Likes > st.MostLikedItem.Likes {
			item := s.Items[i]
			st.MostLikedItem = &item
		}
	}

	recent := make([]Item, len(s.Items))
	copy(recent, s.Items)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > recentItemsLimit {
		recent = recent[:recentItemsLimit]
	}
	st.RecentItems = recent
	return st
}

type AchievementKind string

const (
	AchievementPhotos AchievementKind = "photos"
	AchievementAlbums AchievementKind = "albums"
	AchievementLikes  AchievementKind = "likes"
)

type Achievement struct {
	ID          string          `json:"id"`
	Kind        AchievementKind `json:"kind"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Requirement int             `json:"requirement"`
	Progress    int             `json:"progress"`
	Percentage  float64         `json:"percentage"`
	Unlocked    bool            `json:"unlocked"`
}

var achievementDefinitions = []Achievement{
	{ID: "first_shots", Kind: AchievementPhotos, Title: "Photographer", Description: "Upload 10 photos", Requirement: 10},
	{ID: "curator", Kind: AchievementAlbums, Title: "Curator", Description: "Create 3 albums", Requirement: 3},
	{ID: "crowd_favorite", Kind: AchievementLikes, Title: "Crowd Favorite", Description: "Collect 100 likes", Requirement: 100},
}

// Achievements evaluates the gallery unlocks against st. Percentages are
// clamped to [0, 100].
func Achievements(st Stats) []Achievement {
	out := make([]Achievement, 0, len(achievementDefinitions))
	for _, def := range achievementDefinitions {
		a := def
		switch a.Kind {
		case AchievementPhotos:
			a.Progress = st.TotalPhotos
		case AchievementAlbums:
			a.Progress = st.TotalAlbums
		case AchievementLikes:
			a.Progress = st.TotalLikes
		}
		a.Unlocked = a.Progress >= a.Requirement
		a.Percentage = clampPercent(a.Progress, a.Requirement)
		out = append(out, a)
	}
	return out
}

func clampPercent(current, required int) float64 {
	if required <= 0 {
		return 100
	}
	pct := float64(current) / float64(required) * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
