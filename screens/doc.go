// Package screens holds the view models of the app shell: the bottom tab
// bar, the splash screen, and the home, report, leaderboard and profile
// tabs. Everything except the report form is static demo content.
package screens
