// Package export turns stored service records into spreadsheet rows and
// writes them as an xlsx workbook.
package export

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/marinelog/internal/client/models"
)

var (
	ErrNothingToExport = errors.New("no records to export")
	ErrUnknownRange    = errors.New("unknown export range")
)

// DateLayout is how start date-times appear in the sheet.
const DateLayout = "02/01/2006 15:04:05"

// PendingUpload stands in for a photo that has not reached the server yet.
const PendingUpload = "pending-upload"

type Range string

const (
	RangeToday    Range = "today"
	RangeWeek     Range = "week"
	RangeMonth    Range = "month"
	RangeAll      Range = "all"
	RangeSelected Range = "selected"
)

// ParseRange accepts the range names used on the command line.
func ParseRange(s string) (Range, error) {
	r := Range(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RangeToday, RangeWeek, RangeMonth, RangeAll, RangeSelected:
		return r, nil
	case "":
		return RangeAll, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRange, s)
}

// Filter selects which records are exported.
type Filter struct {
	Range Range
	// IDs is only consulted for RangeSelected.
	IDs []string
	// ClientName keeps records whose client contains it, ignoring case.
	ClientName string
	Now        time.Time
	Location   *time.Location
}

type Row struct {
	ClientName    string
	VesselName    string
	StartDateTime string
	Details       string
	PhotoCount    int
	Photos        []string
}

// Select returns the records matching f, keeping their order.
func Select(records []models.ServiceRecord, f Filter) ([]models.ServiceRecord, error) {
	loc := f.location()
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.In(loc)

	var since time.Time
	switch f.Range {
	case RangeToday:
		since = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	case RangeWeek:
		since = now.AddDate(0, 0, -7)
	case RangeMonth:
		since = now.AddDate(0, -1, 0)
	case RangeAll, RangeSelected, "":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRange, f.Range)
	}

	needle := strings.ToLower(strings.TrimSpace(f.ClientName))
	out := make([]models.ServiceRecord, 0, len(records))
	for _, r := range records {
		if f.Range == RangeSelected && !slices.Contains(f.IDs, r.ID) {
			continue
		}
		if !since.IsZero() && r.StartDateTime.Before(since) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(r.ClientName), needle) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Rows builds the sheet rows for the records matching f.
func Rows(records []models.ServiceRecord, f Filter) ([]Row, error) {
	selected, err := Select(records, f)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, ErrNothingToExport
	}

	loc := f.location()
	rows := make([]Row, 0, len(selected))
	for _, r := range selected {
		photos := make([]string, 0, len(r.Photos))
		for _, p := range r.Photos {
			if p.Remote() {
				photos = append(photos, p.URL)
			} else {
				photos = append(photos, PendingUpload)
			}
		}
		rows = append(rows, Row{
			ClientName:    r.ClientName,
			VesselName:    r.VesselName,
			StartDateTime: r.StartDateTime.In(loc).Format(DateLayout),
			Details:       r.Details,
			PhotoCount:    len(photos),
			Photos:        photos,
		})
	}
	return rows, nil
}

// FileName names the workbook after the range and the export time.
func FileName(r Range, now time.Time) string {
	if r == "" {
		r = RangeAll
	}
	return fmt.Sprintf("records_%s_%s.xlsx", r, now.UTC().Format("2006-01-02T15-04-05"))
}

func (f Filter) location() *time.Location {
	if f.Location == nil {
		return time.Local
	}
	return f.Location
}
