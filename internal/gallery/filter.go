package gallery

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

type AlbumSort string

const (
	AlbumSortDateDesc  AlbumSort = "date_desc"
	AlbumSortDateAsc   AlbumSort = "date_asc"
	AlbumSortTitleAsc  AlbumSort = "title_asc"
	AlbumSortTitleDesc AlbumSort = "title_desc"
	AlbumSortItemsDesc AlbumSort = "items_desc"
	AlbumSortItemsAsc  AlbumSort = "items_asc"
)

type AlbumFilter struct {
	Search  string
	Privacy Privacy // empty means all
	Sort    AlbumSort
}

// FilterAlbums returns the albums matching f, sorted. The input is not
// modified. An unknown sort keeps the input order.
func FilterAlbums(albums []Album, f AlbumFilter) []Album {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Album, 0, len(albums))
	for _, a := range albums {
		if f.Privacy != "" && a.Privacy != f.Privacy {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.Title), search) &&
			!strings.Contains(strings.ToLower(a.Description), search) {
			continue
		}
		out = append(out, a)
	}

	var less func(i, j int) bool
	switch f.Sort {
	case AlbumSortDateDesc:
		less = func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) }
	case AlbumSortDateAsc:
		less = func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) }
	case AlbumSortTitleAsc:
		less = func(i, j int) bool { return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title) }
	case AlbumSortTitleDesc:
		less = func(i, j int) bool { return strings.ToLower(out[i].Title) > strings.ToLower(out[j].Title) }
	case AlbumSortItemsDesc:
		less = func(i, j int) bool { return out[i].ItemCount > out[j].ItemCount }
	case AlbumSortItemsAsc:
		less = func(i, j int) bool { return out[i].ItemCount < out[j].ItemCount }
	}
	if less != nil {
		sort.SliceStable(out, less)
	}
	return out
}

type ItemSort string

const (
	ItemSortNewest        ItemSort = "newest"
	ItemSortOldest        ItemSort = "oldest"
	ItemSortMostLiked     ItemSort = "most_liked"
	ItemSortMostCommented ItemSort = "most_commented"
	ItemSortTitle         ItemSort = "title"
)

type ItemFilter struct {
	AlbumID    uuid.UUID // uuid.Nil means all albums
	Type       ItemType
	Search     string
	Bookmarked bool
	Sort       ItemSort
}

func FilterItems(items []Item, f ItemFilter) []Item {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if f.AlbumID != uuid.Nil && it.AlbumID != f.AlbumID {
			continue
		}
		if f.Type != "" && it.Type != f.Type {
			continue
		}
		if f.Bookmarked && !it.IsBookmarked {
			continue
		}
		if search != "" && !itemMatches(it, search) {
			continue
		}
		out = append(out, it)
	}

	var less func(i, j int) bool
	switch f.Sort {
	case ItemSortNewest:
		less = func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) }
	case ItemSortOldest:
		less = func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) }
	case ItemSortMostLiked:
		less = func(i, j int) bool { return out[i].Likes > out[j].Likes }
	case ItemSortMostCommented:
		less = func(i, j int) bool { return out[i].Comments > out[j].Comments }
	case ItemSortTitle:
		less = func(i, j int) bool { return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title) }
	}
	if less != nil {
		sort.SliceStable(out, less)
	}
	return out
}

func itemMatches(it Item, search string) bool {
	if strings.Contains(strings.ToLower(it.Title), search) ||
		strings.Contains(strings.ToLower(it.Description), search) ||
		strings.Contains(strings.ToLower(it.Location), search) {
		return true
	}
	for _, tag := range it.Tags {
		if strings.Contains(strings.ToLower(tag), search) {
			return true
		}
	}
	return false
}
