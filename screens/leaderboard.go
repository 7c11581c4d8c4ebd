package screens

import "strings"

// CurrentUserName marks the signed-in user's leaderboard row.
const CurrentUserName = "You"

// Entry is one leaderboard row.
type Entry struct {
	ID     string
	Name   string
	Avatar string
	Points int
	Badges []string
	Rank   int
}

// Initials is the avatar fallback: the first letter of each word.
func (e Entry) Initials() string {
	return Initials(e.Name)
}

// RankStyle names the highlight for the top three ranks, "" otherwise.
func (e Entry) RankStyle() string {
	switch e.Rank {
	case 1:
		return "gold"
	case 2:
		return "silver"
	case 3:
		return "bronze"
	default:
		return ""
	}
}

// BadgeIcon maps a badge name to its icon.
func BadgeIcon(badge string) string {
	switch badge {
	case "Guardian":
		return "award"
	case "Reporter":
		return "camera"
	case "Hero":
		return "star"
	default:
		return "target"
	}
}

// Initials returns the first rune of every space-separated word of name.
func Initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			b.WriteRune(r)
			break
		}
	}
	return b.String()
}

// LeaderboardScreen is the leaderboard tab.
type LeaderboardScreen struct {
	Entries []Entry
	Current *Entry
}

func Leaderboard() LeaderboardScreen {
	entries := []Entry{
		{ID: "1", Name: "Maria Santos", Points: 2450, Badges: []string{"Guardian", "Reporter", "Hero"}, Rank: 1},
		{ID: "2", Name: "John Chen", Points: 2100, Badges: []string{"Guardian", "Reporter"}, Rank: 2},
		{ID: "3", Name: "Sarah Johnson", Points: 1890, Badges: []string{"Reporter", "Hero"}, Rank: 3},
		{ID: "4", Name: CurrentUserName, Points: 1245, Badges: []string{"Reporter"}, Rank: 4},
		{ID: "5", Name: "Mike Rodriguez", Points: 1100, Badges: []string{"Guardian"}, Rank: 5},
	}
	s := LeaderboardScreen{Entries: entries}
	for i := range s.Entries {
		if s.Entries[i].Name == CurrentUserName {
			s.Current = &s.Entries[i]
			break
		}
	}
	return s
}
