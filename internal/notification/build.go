package notification

import "inkwatch/internal/feed"

// Weapon id markers used by splatoon3.ink for the mystery weapon slots.
const (
	RandomWeaponMarker = "52e07029f01362a4"
	GoldenWeaponMarker = "obaiwjeobjo"
)

// Category names an independent event list inside the feeds.
type Category string

const (
	CategoryRegular     Category = "regular"
	CategoryBigRun      Category = "big_run"
	CategoryTeamContest Category = "team_contest"
	CategoryFestival    Category = "festival"
)

// FromRegular classifies a regular rotation. Only rotations with a random
// (or else golden) weapon slot produce a notification.
func FromRegular(ev feed.CoopEvent) (Notification, bool) {
	stage := stageOf(ev.Setting)
	switch {
	case ev.Setting.HasWeapon(RandomWeaponMarker):
		return Random{
			Start:   ev.StartTime.UTC(),
			End:     ev.EndTime.UTC(),
			Weapons: ev.Setting.WeaponNames(),
			King:    ev.KingGuess,
			Stage:   stage,
		}, true
	case ev.Setting.HasWeapon(GoldenWeaponMarker):
		return Golden{
			Start: ev.StartTime.UTC(),
			End:   ev.EndTime.UTC(),
			King:  ev.KingGuess,
			Stage: stage,
		}, true
	default:
		return nil, false
	}
}

func FromBigRun(ev feed.CoopEvent) Notification {
	return BigRun{
		Start: ev.StartTime.UTC(),
		End:   ev.EndTime.UTC(),
		King:  ev.KingGuess,
		Stage: stageOf(ev.Setting),
	}
}

func FromTeamContest(ev feed.TeamContestEvent) Notification {
	return EggstraWork{
		Start:   ev.StartTime.UTC(),
		End:     ev.EndTime.UTC(),
		Weapons: ev.Setting.WeaponNames(),
		Stage:   stageOf(ev.Setting),
	}
}

// FromFest builds a Splatfest notification; Tricolor is the midpoint of the fest.
func FromFest(f feed.Fest) Notification {
	start := f.StartTime.UTC()
	end := f.EndTime.UTC()
	return Splatfest{
		Title:     f.Title,
		Teams:     f.TeamNames(),
		TeamImage: f.Image.URL,
		Start:     start,
		Tricolor:  start.Add(end.Sub(start) / 2),
		End:       end,
	}
}

// FromRegularList builds notifications for each regular rotation that qualifies.
func FromRegularList(evs []feed.CoopEvent) []Notification {
	out := make([]Notification, 0, len(evs))
	for _, ev := range evs {
		if n, ok := FromRegular(ev); ok {
			out = append(out, n)
		}
	}
	return out
}

func FromBigRunList(evs []feed.CoopEvent) []Notification {
	out := make([]Notification, 0, len(evs))
	for _, ev := range evs {
		out = append(out, FromBigRun(ev))
	}
	return out
}

func FromTeamContestList(evs []feed.TeamContestEvent) []Notification {
	out := make([]Notification, 0, len(evs))
	for _, ev := range evs {
		out = append(out, FromTeamContest(ev))
	}
	return out
}

func FromFestList(fs []feed.Fest) []Notification {
	out := make([]Notification, 0, len(fs))
	for _, f := range fs {
		out = append(out, FromFest(f))
	}
	return out
}

func stageOf(s feed.CoopSetting) Stage {
	return Stage{Name: s.CoopStage.Name, Image: s.CoopStage.Image.URL}
}
