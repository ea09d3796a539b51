package cloudflare

import (
	"context"
	"fmt"
	"net/http"
)

// GetLocation fetches one gateway location. A missing location yields an error wrapping ErrNotFound.
func (client *Client) GetLocation(ctx context.Context, locationID string) (Location, error) {
	var response apiResponse[*Location]
	if err := client.send(ctx, http.MethodGet, client.accountBase("gateway", "locations", locationID), nil, &response); err != nil {
		return Location{}, err
	}
	if response.Result == nil {
		return Location{}, fmt.Errorf("%w: gateway location %s", ErrNotFound, locationID)
	}
	return *response.Result, nil
}

// UpdateLocation replaces a gateway location.
func (client *Client) UpdateLocation(ctx context.Context, locationID string, update LocationUpdate) (Location, error) {
	var response apiResponse[Location]
	if err := client.send(ctx, http.MethodPut, client.accountBase("gateway", "locations", locationID), update, &response); err != nil {
		return Location{}, err
	}
	return response.Result, nil
}
