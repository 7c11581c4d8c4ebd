package screens

import (
	"strings"
	"time"
)

// Tab identifies a bottom-navigation tab.
type Tab string

const (
	TabHome        Tab = "home"
	TabReport      Tab = "report"
	TabLeaderboard Tab = "leaderboard"
	TabProfile     Tab = "profile"
)

// DefaultTab is shown when no tab, or an unknown one, is requested.
const DefaultTab = TabHome

// TabItem is one entry of the tab bar.
type TabItem struct {
	ID    Tab
	Label string
	Icon  string
}

var tabs = []TabItem{
	{ID: TabHome, Label: "Home", Icon: "home"},
	{ID: TabReport, Label: "Report", Icon: "camera"},
	{ID: TabLeaderboard, Label: "Leaderboard", Icon: "trophy"},
	{ID: TabProfile, Label: "Profile", Icon: "user"},
}

// Tabs returns the tab bar in display order.
func Tabs() []TabItem {
	return append([]TabItem(nil), tabs...)
}

// ParseTab maps a query value to a tab, falling back to DefaultTab.
func ParseTab(s string) Tab {
	t := Tab(strings.ToLower(strings.TrimSpace(s)))
	for _, item := range tabs {
		if item.ID == t {
			return t
		}
	}
	return DefaultTab
}

// Splash screen timing. The screen stays for SplashDuration and then fades
// out over SplashFade.
const (
	SplashDuration = 3 * time.Second
	SplashFade     = 500 * time.Millisecond
	// SplashCookie marks a browser that has already seen the splash.
	SplashCookie = "mw_splash_seen"
)

// Splash is the content of the splash screen.
type Splash struct {
	Title   string
	Tagline string
	Visible time.Duration
	Fade    time.Duration
}

func NewSplash() Splash {
	return Splash{
		Title:   "Mangrove Watch",
		Tagline: "Protecting Our Mangroves Together",
		Visible: SplashDuration,
		Fade:    SplashFade,
	}
}
