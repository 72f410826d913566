package vendors

import (
	"context"
	"net/url"

	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/models"
)

// GoogleHotelsID is the vendor id of the built-in Google Hotels adapter
const GoogleHotelsID = "googleHotels"

const googleTravelSearchURL = "https://www.google.com/travel/search"

// GoogleHotelsAdapter opens the Google Travel page for the hotel and
// reports that page as the match
type GoogleHotelsAdapter struct{}

func NewGoogleHotelsAdapter() *GoogleHotelsAdapter {
	return &GoogleHotelsAdapter{}
}

func (a *GoogleHotelsAdapter) ID() string {
	return GoogleHotelsID
}

// SearchURL builds the Google Travel query for a hotel
func (a *GoogleHotelsAdapter) SearchURL(hotel models.HotelDescriptor) string {
	q := url.Values{"q": {hotel.DisplayName + ", " + hotel.FormattedAddress}}
	return googleTravelSearchURL + "?" + q.Encode()
}

func (a *GoogleHotelsAdapter) Search(ctx context.Context, task interfaces.VendorTask) error {
	req := task.Request()
	page := task.Page()

	task.Progress(ctx, "Preparing Google Hotels search.")
	if err := page.Navigate(ctx, a.SearchURL(req.Hotel)); err != nil {
		return err
	}

	link, err := page.URL(ctx)
	if err != nil {
		return err
	}

	task.Results(ctx, &models.Candidate{
		Link:    link,
		Name:    req.Hotel.DisplayName,
		Address: req.Hotel.FormattedAddress,
	})
	return nil
}
