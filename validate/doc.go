// Package validate checks the registration, login and password reset forms
// and reports failures as user-readable messages keyed by a closed set of
// form fields.
//
// Every check is pure: no I/O, no shared mutable state. Results always
// replace any previous error set; callers clear individual fields as the
// user edits them.
package validate
