package screens

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mangrovewatch/mangrove/flow"
	"github.com/oklog/ulid/v2"
)

// ReportPoints is awarded for every accepted report.
const ReportPoints = 50

// Toast texts of the report tab.
const (
	IncompleteTitle       = "Incomplete report"
	IncompleteDescription = "Please fill all required fields and add at least one photo."
	SubmittedTitle        = "Report submitted successfully!"
	SubmittedDescription  = "Thank you for protecting our mangroves. You've earned 50 points!"
	LocationTitle         = "Location captured"
	LocationDescription   = "GPS coordinates have been recorded for your report."
	LocationDeniedTitle   = "Location access denied"
	LocationDeniedDesc    = "Please enable location services for accurate reporting."
)

// ErrIncompleteReport is returned by Submit when a required field is
// missing.
var ErrIncompleteReport = errors.New("screens: incomplete report")

// Category is an incident type.
type Category struct {
	ID    string
	Label string
}

var categories = []Category{
	{ID: "cutting", Label: "Illegal Cutting"},
	{ID: "dumping", Label: "Waste Dumping"},
	{ID: "pollution", Label: "Water Pollution"},
	{ID: "construction", Label: "Illegal Construction"},
	{ID: "other", Label: "Other"},
}

// Categories returns the incident types in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// CategoryByID looks up a category.
func CategoryByID(id string) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// Location is a GPS fix.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Photo describes one uploaded image.
type Photo struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Report is a submitted incident report.
type Report struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Category    string       `json:"category"`
	Description string       `json:"description"`
	Photos      []Photo      `json:"photos"`
	Location    *Location    `json:"location,omitempty"`
	Status      ReportStatus `json:"status"`
	Points      int          `json:"points"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ReportStore persists reports and the points they earn.
type ReportStore interface {
	Save(ctx context.Context, r Report) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Report, error)
	Points(ctx context.Context, userID string) (int64, error)
}

// ReportForm is the report tab. It holds the draft between edits.
type ReportForm struct {
	store  ReportStore
	notify flow.Notifier
	now    func() time.Time

	mu          sync.Mutex
	category    string
	description string
	photos      []Photo
	location    *Location
}

func NewReportForm(store ReportStore, n flow.Notifier) *ReportForm {
	if n == nil {
		n = flow.NotifierFunc(func(flow.Toast) {})
	}
	return &ReportForm{store: store, notify: n, now: time.Now}
}

// SelectCategory picks the incident type. Unknown ids are ignored.
func (f *ReportForm) SelectCategory(id string) {
	if _, ok := CategoryByID(id); !ok {
		return
	}
	f.mu.Lock()
	f.category = id
	f.mu.Unlock()
}

func (f *ReportForm) SetDescription(s string) {
	f.mu.Lock()
	f.description = s
	f.mu.Unlock()
}

// AddPhotos appends to the uploaded photos.
func (f *ReportForm) AddPhotos(p ...Photo) {
	f.mu.Lock()
	f.photos = append(f.photos, p...)
	f.mu.Unlock()
}

// CaptureLocation records a GPS fix. Once captured it cannot be replaced.
func (f *ReportForm) CaptureLocation(loc Location) {
	f.mu.Lock()
	if f.location != nil {
		f.mu.Unlock()
		return
	}
	f.location = &loc
	f.mu.Unlock()
	f.notify.Notify(flow.Toast{Kind: flow.ToastSuccess, Title: LocationTitle, Description: LocationDescription})
}

// RestoreLocation puts back a fix captured on an earlier request. No toast
// is shown.
func (f *ReportForm) RestoreLocation(loc Location) {
	f.mu.Lock()
	if f.location == nil {
		f.location = &loc
	}
	f.mu.Unlock()
}

// LocationDenied reports that the browser refused a GPS fix.
func (f *ReportForm) LocationDenied() {
	f.notify.Notify(flow.Toast{Kind: flow.ToastError, Title: LocationDeniedTitle, Description: LocationDeniedDesc})
}

// Draft is a snapshot of the form.
type Draft struct {
	Category    string
	Description string
	Photos      []Photo
	Location    *Location
}

func (f *ReportForm) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := Draft{
		Category:    f.category,
		Description: f.description,
		Photos:      append([]Photo(nil), f.photos...),
	}
	if f.location != nil {
		loc := *f.location
		d.Location = &loc
	}
	return d
}

// Submit files the draft for userID. An incomplete draft is kept and
// reported with a toast; a stored report resets the form.
func (f *ReportForm) Submit(ctx context.Context, userID string) (Report, error) {
	d := f.Draft()
	if d.Category == "" || d.Description == "" || len(d.Photos) == 0 {
		f.notify.Notify(flow.Toast{Kind: flow.ToastError, Title: IncompleteTitle, Description: IncompleteDescription})
		return Report{}, ErrIncompleteReport
	}

	now := f.now()
	r := Report{
		ID:          ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		UserID:      userID,
		Category:    d.Category,
		Description: d.Description,
		Photos:      d.Photos,
		Location:    d.Location,
		Status:      StatusPending,
		Points:      ReportPoints,
		CreatedAt:   now.UTC(),
	}
	if f.store != nil {
		if err := f.store.Save(ctx, r); err != nil {
			f.notify.Notify(flow.Toast{Kind: flow.ToastError, Title: "Report not submitted", Description: flow.GenericErrorMessage})
			return Report{}, err
		}
	}

	f.notify.Notify(flow.Toast{Kind: flow.ToastSuccess, Title: SubmittedTitle, Description: SubmittedDescription})
	f.Reset()
	return r, nil
}

// Reset clears every field.
func (f *ReportForm) Reset() {
	f.mu.Lock()
	f.category = ""
	f.description = ""
	f.photos = nil
	f.location = nil
	f.mu.Unlock()
}
