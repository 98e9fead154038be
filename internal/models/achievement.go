package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

type AchievementCategory string

const (
	AchievementReader     AchievementCategory = "reader"
	AchievementCinephile  AchievementCategory = "cinephile"
	AchievementMusicLover AchievementCategory = "music_lover"
	AchievementCollector  AchievementCategory = "collector"
)

type AchievementTier string

const (
	TierBeginner     AchievementTier = "beginner"
	TierIntermediate AchievementTier = "intermediate"
	TierAdvanced     AchievementTier = "advanced"
)

// AchievementDefinition is a static threshold. Counts selects which items
// contribute; nil means every item.
type AchievementDefinition struct {
	Type        string
	Category    AchievementCategory
	Tier        AchievementTier
	Title       string
	Description string
	Required    int
	Counts      []LibraryItemType
}

func achievementTiers(category AchievementCategory, counts []LibraryItemType, noun string, titles [3]string, required [3]int) []AchievementDefinition {
	tiers := [3]AchievementTier{TierBeginner, TierIntermediate, TierAdvanced}
	out := make([]AchievementDefinition, 0, len(tiers))
	for i, tier := range tiers {
		out = append(out, AchievementDefinition{
			Type:        string(category) + "_" + string(tier),
			Category:    category,
			Tier:        tier,
			Title:       titles[i],
			Description: achievementDescription(required[i], noun),
			Required:    required[i],
			Counts:      counts,
		})
	}
	return out
}

func achievementDescription(n int, noun string) string {
	return "Add " + strconv.Itoa(n) + " " + noun + " to your library"
}

// LibraryAchievementDefinitions are the library unlocks in display order.
var LibraryAchievementDefinitions = concatDefinitions(
	achievementTiers(AchievementReader, []LibraryItemType{LibraryItemBook}, "books",
		[3]string{"Beginner Reader", "Avid Reader", "Master of Literature"}, [3]int{5, 20, 50}),
	achievementTiers(AchievementCinephile, []LibraryItemType{LibraryItemMovie, LibraryItemSeries}, "movies or series",
		[3]string{"Beginner Cinephile", "Seasoned Cinephile", "Master of Cinema"}, [3]int{10, 50, 100}),
	achievementTiers(AchievementMusicLover, []LibraryItemType{LibraryItemMusic}, "albums or tracks",
		[3]string{"Music Lover", "Sound Collector", "Library Maestro"}, [3]int{10, 50, 100}),
	achievementTiers(AchievementCollector, nil, "items",
		[3]string{"Beginner Collector", "Dedicated Collector", "Master Collector"}, [3]int{25, 100, 250}),
)

func concatDefinitions(groups ...[]AchievementDefinition) []AchievementDefinition {
	var out []AchievementDefinition
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// LibraryAchievement is a stored unlock.
type LibraryAchievement struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AchievedAt  time.Time `json:"achieved_at"`
}

// AchievementProgress is a definition joined with the user's count.
type AchievementProgress struct {
	Type          string              `json:"type"`
	Category      AchievementCategory `json:"category"`
	Tier          AchievementTier     `json:"tier"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	CurrentCount  int                 `json:"current_count"`
	RequiredCount int                 `json:"required_count"`
	Percentage    float64             `json:"percentage"`
	Unlocked      bool                `json:"unlocked"`
	UnlockedAt    *time.Time          `json:"unlocked_at,omitempty"`
}

// ProgressPercentage returns current/required as a percentage in [0, 100].
func ProgressPercentage(current, required int) float64 {
	if required <= 0 {
		return 100
	}
	pct := float64(current) / float64(required) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func countFor(def AchievementDefinition, byType map[LibraryItemType]int) int {
	if def.Counts == nil {
		total := 0
		for _, n := range byType {
			total += n
		}
		return total
	}
	total := 0
	for _, t := range def.Counts {
		total += byType[t]
	}
	return total
}

// AchievementProgressFor joins every definition with the counts in byType
// and the unlock rows already stored.
func AchievementProgressFor(byType map[LibraryItemType]int, unlocked []LibraryAchievement) []AchievementProgress {
	unlockedAt := make(map[string]time.Time, len(unlocked))
	for _, a := range unlocked {
		unlockedAt[a.Type] = a.AchievedAt
	}

	out := make([]AchievementProgress, 0, len(LibraryAchievementDefinitions))
	for _, def := range LibraryAchievementDefinitions {
		current := countFor(def, byType)
		p := AchievementProgress{
			Type:          def.Type,
			Category:      def.Category,
			Tier:          def.Tier,
			Title:         def.Title,
			Description:   def.Description,
			CurrentCount:  current,
			RequiredCount: def.Required,
			Percentage:    ProgressPercentage(current, def.Required),
		}
		if at, ok := unlockedAt[def.Type]; ok {
			at := at
			p.Unlocked = true
			p.UnlockedAt = &at
			p.Percentage = 100
		}
		out = append(out, p)
	}
	return out
}

// EvaluateAchievements returns the definitions whose thresholds are met by
// byType and that are not yet in unlocked.
func EvaluateAchievements(byType map[LibraryItemType]int, unlocked []LibraryAchievement) []AchievementDefinition {
	have := make(map[string]bool, len(unlocked))
	for _, a := range unlocked {
		have[a.Type] = true
	}
	var out []AchievementDefinition
	for _, def := range LibraryAchievementDefinitions {
		if have[def.Type] {
			continue
		}
		if countFor(def, byType) >= def.Required {
			out = append(out, def)
		}
	}
	return out
}
