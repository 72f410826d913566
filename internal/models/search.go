package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used by search requests
const DateLayout = "2006-01-02"

// SearchRequest describes one hotel lookup fanned out to several vendors
type SearchRequest struct {
	Hotel      HotelDescriptor `json:"hotel"`
	DateRanges []DateRange     `json:"dateRanges" validate:"required,min=1,dive"`
	Adults     int             `json:"adults" validate:"min=1,max=16"`
	Children   []int           `json:"children" validate:"omitempty,max=8,dive,min=0,max=17"`
	Platforms  []string        `json:"platforms" validate:"required,min=1,dive,required"`
}

// HotelDescriptor identifies the target hotel
type HotelDescriptor struct {
	DisplayName      string    `json:"displayName" validate:"required"`
	FormattedAddress string    `json:"formattedAddress"`
	Location         *Location `json:"location,omitempty"`
	City             string    `json:"city,omitempty"`
	State            string    `json:"state,omitempty"`
}

// Location represents geographic coordinates
type Location struct {
	Latitude  float64 `json:"lat" validate:"min=-90,max=90"`
	Longitude float64 `json:"lng" validate:"min=-180,max=180"`
}

// DateRange is a half-open stay interval [From, To) in calendar days
type DateRange struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" validate:"required,datetime=2006-01-02"`
}

// Parse returns the range bounds as times. From must precede To.
func (d DateRange) Parse() (time.Time, time.Time, error) {
	from, err := time.Parse(DateLayout, d.From)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q: %w", d.From, err)
	}
	to, err := time.Parse(DateLayout, d.To)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q: %w", d.To, err)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("date range %s..%s is empty", d.From, d.To)
	}
	return from, to, nil
}

// Nights returns the number of nights covered by the range, or 0 when invalid
func (d DateRange) Nights() int {
	from, to, err := d.Parse()
	if err != nil {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}

// SearchQuery returns the free-text query combining name and address
func (h HotelDescriptor) SearchQuery() string {
	if h.FormattedAddress == "" {
		return h.DisplayName
	}
	return strings.TrimSpace(h.DisplayName + ", " + h.FormattedAddress)
}

// SearchResponse is returned synchronously by a search dispatch
type SearchResponse struct {
	SessionID string   `json:"sessionId"`
	Platforms []string `json:"platforms"`
	Dropped   []string `json:"dropped,omitempty"`
}
