package geocoder

import (
	"context"
	"time"

	geo "github.com/codingsince1985/geo-golang"
	"github.com/codingsince1985/geo-golang/openstreetmap"
	"github.com/pkg/errors"
)

const DefaultTimeout = 10 * time.Second

var ErrNoResult = errors.New("no location found for coordinates")

// Client resolves coordinates to a human-readable address via
// OpenStreetMap(Nominatim). A single attempt is made per call - the
// caller decides what a failure degrades to.
type Client struct {
	geocoder geo.Geocoder
	timeout  time.Duration
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{geocoder: openstreetmap.Geocoder(), timeout: timeout}
}

type reverseResult struct {
	address *geo.Address
	err     error
}

// ReverseGeocode returns the formatted address for (lat, lng).
// The lookup is bounded by the client timeout; an expired deadline is
// reported as an error, never a hang.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resultCh := make(chan reverseResult, 1)
	go func() {
		address, err := c.geocoder.ReverseGeocode(lat, lng)
		resultCh <- reverseResult{address: address, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "reverse geocode")
	case result := <-resultCh:
		if result.err != nil {
			return "", errors.Wrap(result.err, "reverse geocode")
		}

		if result.address == nil || result.address.FormattedAddress == "" {
			return "", ErrNoResult
		}

		return result.address.FormattedAddress, nil
	}
}
