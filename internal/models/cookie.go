package models

import "time"

// Cookie is an engine-neutral browser cookie. Field names follow the common
// JSON cookie export format so vendor cookie files stay interchangeable.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // Unix seconds, -1 for session cookies
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"` // "Strict", "Lax", "None"
}

// Session reports whether the cookie lives only as long as the browser context
func (c Cookie) Session() bool {
	return c.Expires <= 0
}

// CookieRecord is the persisted cookie set of one vendor.
// A save replaces the whole record.
type CookieRecord struct {
	Vendor    string    `json:"vendor" badgerhold:"key"`
	Cookies   []Cookie  `json:"cookies"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CookieSummary is the administrative view of a vendor record
type CookieSummary struct {
	Vendor    string    `json:"vendor"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}
