package feed

import (
	"slices"
	"strings"
	"time"
)

// Nodes is the GraphQL-style connection wrapper used throughout the feeds.
type Nodes[E any] struct {
	Nodes []E `json:"nodes"`
}

type Image struct {
	URL string `json:"url"`
}

// ---- schedules.json ----

type Schedules struct {
	Data ScheduleData `json:"data"`
}

type ScheduleData struct {
	CoopGroupingSchedule CoopGrouping `json:"coopGroupingSchedule"`
}

type CoopGrouping struct {
	RegularSchedules     Nodes[CoopEvent]        `json:"regularSchedules"`
	BigRunSchedules      Nodes[CoopEvent]        `json:"bigRunSchedules"`
	TeamContestSchedules Nodes[TeamContestEvent] `json:"teamContestSchedules"`
}

type CoopStage struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Image          Image  `json:"image"`
	ThumbnailImage Image  `json:"thumbnailImage"`
}

type Weapon struct {
	ID    string `json:"__splatoon3ink_id"`
	Name  string `json:"name"`
	Image Image  `json:"image"`
}

type Boss struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CoopSetting struct {
	Typename  string    `json:"__typename"`
	Boss      Boss      `json:"boss"`
	CoopStage CoopStage `json:"coopStage"`
	Weapons   []Weapon  `json:"weapons"`
}

func (s CoopSetting) Equal(o CoopSetting) bool {
	return s.Typename == o.Typename &&
		s.Boss == o.Boss &&
		s.CoopStage == o.CoopStage &&
		slices.Equal(s.Weapons, o.Weapons)
}

// HasWeapon reports whether any weapon id contains marker.
func (s CoopSetting) HasWeapon(marker string) bool {
	for _, w := range s.Weapons {
		if strings.Contains(w.ID, marker) {
			return true
		}
	}
	return false
}

// WeaponNames returns weapon names in feed order.
func (s CoopSetting) WeaponNames() []string {
	out := make([]string, 0, len(s.Weapons))
	for _, w := range s.Weapons {
		out = append(out, w.Name)
	}
	return out
}

// CoopEvent is one Salmon Run rotation (regular or Big Run).
type CoopEvent struct {
	StartTime time.Time   `json:"startTime"`
	EndTime   time.Time   `json:"endTime"`
	Setting   CoopSetting `json:"setting"`
	KingGuess string      `json:"__splatoon3ink_king_salmonid_guess"`
}

func (e CoopEvent) Equal(o CoopEvent) bool {
	return e.StartTime.Equal(o.StartTime) &&
		e.EndTime.Equal(o.EndTime) &&
		e.KingGuess == o.KingGuess &&
		e.Setting.Equal(o.Setting)
}

// TeamContestEvent is one Eggstra Work contest.
type TeamContestEvent struct {
	StartTime time.Time   `json:"startTime"`
	EndTime   time.Time   `json:"endTime"`
	Setting   CoopSetting `json:"setting"`
}

func (e TeamContestEvent) Equal(o TeamContestEvent) bool {
	return e.StartTime.Equal(o.StartTime) &&
		e.EndTime.Equal(o.EndTime) &&
		e.Setting.Equal(o.Setting)
}

// ---- festivals.json ----

type Festivals struct {
	US FestRegion `json:"US"`
	EU FestRegion `json:"EU"`
	JP FestRegion `json:"JP"`
	AP FestRegion `json:"AP"`
}

// Region returns the festival records for a region code (US, EU, JP, AP).
// Unknown codes fall back to US.
func (f Festivals) Region(code string) FestRegion {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "EU":
		return f.EU
	case "JP":
		return f.JP
	case "AP":
		return f.AP
	default:
		return f.US
	}
}

type FestRegion struct {
	Data FestData `json:"data"`
}

type FestData struct {
	FestRecords Nodes[Fest] `json:"festRecords"`
}

type Color struct {
	A float64 `json:"a"`
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

type FestTeam struct {
	ID       string `json:"id"`
	TeamName string `json:"teamName"`
	Color    Color  `json:"color"`
	Image    Image  `json:"image"`
	Role     string `json:"role,omitempty"`
}

// Fest is one Splatfest record. State and team roles change as the fest
// progresses, and those changes count as a different record. Vote counts and
// results are not decoded and never affect equality.
type Fest struct {
	ID        string     `json:"id"`
	State     string     `json:"state"`
	StartTime time.Time  `json:"startTime"`
	EndTime   time.Time  `json:"endTime"`
	Title     string     `json:"title"`
	Image     Image      `json:"image"`
	Teams     []FestTeam `json:"teams"`
	IsVotable bool       `json:"isVotable"`
}

func (f Fest) Equal(o Fest) bool {
	return f.ID == o.ID &&
		f.State == o.State &&
		f.StartTime.Equal(o.StartTime) &&
		f.EndTime.Equal(o.EndTime) &&
		f.Title == o.Title &&
		f.Image == o.Image &&
		f.IsVotable == o.IsVotable &&
		slices.Equal(f.Teams, o.Teams)
}

// TeamNames returns team names in feed order.
func (f Fest) TeamNames() []string {
	out := make([]string, 0, len(f.Teams))
	for _, t := range f.Teams {
		out = append(out, t.TeamName)
	}
	return out
}
