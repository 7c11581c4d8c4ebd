package screens

import "time"

// ReportStatus is the review state of a submitted report.
type ReportStatus string

const (
	StatusPending     ReportStatus = "pending"
	StatusApproved    ReportStatus = "approved"
	StatusUnderReview ReportStatus = "under_review"
)

// Label is the display text of s.
func (s ReportStatus) Label() string {
	switch s {
	case StatusApproved:
		return "Approved"
	case StatusUnderReview:
		return "Under Review"
	case StatusPending:
		return "Pending"
	default:
		return "Unknown"
	}
}

// ReportSummary is one row of "My Reports".
type ReportSummary struct {
	ID          string
	Category    string
	Description string
	Date        time.Time
	Status      ReportStatus
	Points      int
}

// ProfileScreen is the profile tab.
type ProfileScreen struct {
	Name            string
	Email           string
	TotalPoints     int
	Badges          []string
	JoinDate        time.Time
	Reports         []ReportSummary
	TotalReports    int
	ApprovedReports int
}

// Initials is the avatar fallback.
func (p ProfileScreen) Initials() string { return Initials(p.Name) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Profile builds the profile tab for the signed-in user. Empty values fall
// back to placeholders.
func Profile(name, email string) ProfileScreen {
	if name == "" {
		name = "User"
	}
	if email == "" {
		email = "user@example.com"
	}
	reports := []ReportSummary{
		{ID: "1", Category: "Illegal Cutting", Description: "Trees being cut down near the shoreline", Date: day(2024, time.January, 15), Status: StatusApproved, Points: 50},
		{ID: "2", Category: "Waste Dumping", Description: "Plastic waste dumped in mangrove area", Date: day(2024, time.January, 10), Status: StatusUnderReview, Points: 0},
		{ID: "3", Category: "Water Pollution", Description: "Oil spill affecting mangrove roots", Date: day(2024, time.January, 5), Status: StatusApproved, Points: 75},
	}

	approved := 0
	for _, r := range reports {
		if r.Status == StatusApproved {
			approved++
		}
	}
	return ProfileScreen{
		Name:            name,
		Email:           email,
		TotalPoints:     1245,
		Badges:          []string{"Guardian", "Reporter", "Hero"},
		JoinDate:        day(2023, time.December, 1),
		Reports:         reports,
		TotalReports:    len(reports),
		ApprovedReports: approved,
	}
}
