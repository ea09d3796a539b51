package cloudflare

import (
	"context"
	"net/http"
	"strconv"
)

const spectrumPageSize = 100

// ListSpectrumApps returns every Spectrum application of the zone.
func (client *Client) ListSpectrumApps(ctx context.Context, zoneID string) ([]SpectrumApp, error) {
	apps := []SpectrumApp{}
	for page := 1; ; page++ {
		endpoint := client.zoneBase(zoneID, "spectrum", "apps")
		query := endpoint.Query()
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(spectrumPageSize))
		endpoint.RawQuery = query.Encode()

		var response apiResponse[[]SpectrumApp]
		if err := client.send(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
			return nil, err
		}
		apps = append(apps, response.Result...)
		if response.lastPage(page) || len(response.Result) < spectrumPageSize {
			return apps, nil
		}
	}
}

// UpdateSpectrumApp replaces one Spectrum application.
func (client *Client) UpdateSpectrumApp(ctx context.Context, zoneID, appID string, update SpectrumAppUpdate) (SpectrumApp, error) {
	var response apiResponse[SpectrumApp]
	if err := client.send(ctx, http.MethodPut, client.zoneBase(zoneID, "spectrum", "apps", appID), update, &response); err != nil {
		return SpectrumApp{}, err
	}
	return response.Result, nil
}
