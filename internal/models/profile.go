package models

import (
	"time"

	"github.com/google/uuid"
)

type DecorationPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Decoration is a single placed object inside a room of the house.
type Decoration struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Type     string             `json:"type"`
	Position DecorationPosition `json:"position"`
	Rotation float64            `json:"rotation"`
	Scale    float64            `json:"scale"`
}

// RoomDecorations maps a room name ("living_room", "bedroom", ...) to the
// objects placed in it.
type RoomDecorations map[string][]Decoration

type Profile struct {
	ID                       uuid.UUID       `json:"id"`
	CasaName                 string          `json:"casa_name"`
	Bio                      string          `json:"bio"`
	Location                 string          `json:"location"`
	HouseMotto               string          `json:"house_motto"`
	AvatarURL                *string         `json:"avatar_url,omitempty"`
	CoverURL                 *string         `json:"cover_url,omitempty"`
	BackgroundURL            *string         `json:"background_url,omitempty"`
	ReputationPoints         int             `json:"reputation_points"`
	Level                    int             `json:"level"`
	VisitCount               int             `json:"visit_count"`
	Badges                   []string        `json:"badges"`
	HouseColor               string          `json:"house_color"`
	HouseStyle               string          `json:"house_style"`
	HouseNumber              string          `json:"house_number"`
	StreetName               string          `json:"street_name"`
	GardenItems              []string        `json:"garden_items"`
	RoomDecorations          RoomDecorations `json:"room_decorations"`
	ThemeColor               string          `json:"theme_color"`
	Status                   string          `json:"status"`
	IsPublic                 bool            `json:"is_public"`
	CustomBackgroundUnlocked bool            `json:"custom_background_unlocked"`
	IsOnline                 bool            `json:"is_online"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

type UpdateProfileParams struct {
	CasaName   *string `json:"casa_name,omitempty"`
	Bio        *string `json:"bio,omitempty"`
	Location   *string `json:"location,omitempty"`
	HouseMotto *string `json:"house_motto,omitempty"`
	Status     *string `json:"status,omitempty"`
}

// CustomizeHouseParams carries house customisation. Nil fields are left as
// they are.
type CustomizeHouseParams struct {
	HouseColor      *string          `json:"house_color,omitempty"`
	HouseStyle      *string          `json:"house_style,omitempty"`
	HouseNumber     *string          `json:"house_number,omitempty"`
	StreetName      *string          `json:"street_name,omitempty"`
	GardenItems     *[]string        `json:"garden_items,omitempty"`
	RoomDecorations *RoomDecorations `json:"room_decorations,omitempty"`
	ThemeColor      *string          `json:"theme_color,omitempty"`
}

func (p CustomizeHouseParams) IsEmpty() bool {
	return p.HouseColor == nil && p.HouseStyle == nil && p.HouseNumber == nil &&
		p.StreetName == nil && p.GardenItems == nil && p.RoomDecorations == nil &&
		p.ThemeColor == nil
}

var ValidHouseStyles = []string{"cottage", "modern", "victorian", "cabin", "castle", "treehouse"}

func IsValidHouseStyle(style string) bool {
	for _, s := range ValidHouseStyles {
		if s == style {
			return true
		}
	}
	return false
}

type HouseVisit struct {
	ID           uuid.UUID `json:"id"`
	VisitorID    uuid.UUID `json:"visitor_id"`
	HouseOwnerID uuid.UUID `json:"house_owner_id"`
	Message      *string   `json:"message,omitempty"`
	IsPublic     bool      `json:"is_public"`
	CreatedAt    time.Time `json:"created_at"`
}
