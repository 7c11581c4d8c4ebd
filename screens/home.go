package screens

// Stat is one quick-stat card.
type Stat struct {
	Icon  string
	Label string
	Value string
}

// Progress is the user's level progress.
type Progress struct {
	Level           int
	CurrentPoints   int
	NextLevelPoints int
	NextBadge       string
}

// Percent is the share of the current level completed, 0 to 100.
func (p Progress) Percent() int {
	if p.NextLevelPoints <= 0 {
		return 0
	}
	pct := p.CurrentPoints * 100 / p.NextLevelPoints
	if pct > 100 {
		return 100
	}
	return pct
}

// Activity is one line of the community feed.
type Activity struct {
	User   string
	Action string
	Time   string
	Points int
}

// HomeScreen is the home tab.
type HomeScreen struct {
	Title    string
	Subtitle string
	Stats    []Stat
	Progress Progress
	Activity []Activity
}

func Home() HomeScreen {
	return HomeScreen{
		Title:    "Community Mangrove Watch",
		Subtitle: "Protecting our coastal ecosystems together",
		Stats: []Stat{
			{Icon: "camera", Label: "Your Reports", Value: "12"},
			{Icon: "award", Label: "Points Earned", Value: "1,245"},
			{Icon: "users", Label: "Community", Value: "2,341"},
			{Icon: "shield", Label: "Protected", Value: "89km²"},
		},
		Progress: Progress{
			Level:           4,
			CurrentPoints:   245,
			NextLevelPoints: 500,
			NextBadge:       "Mangrove Hero",
		},
		Activity: []Activity{
			{User: "Maria S.", Action: "reported illegal cutting", Time: "2 hours ago", Points: 50},
			{User: "John C.", Action: "verified a pollution report", Time: "4 hours ago", Points: 25},
			{User: "Sarah J.", Action: "completed a conservation task", Time: "1 day ago", Points: 75},
		},
	}
}
