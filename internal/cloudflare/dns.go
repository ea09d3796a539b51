package cloudflare

import (
	"context"
	"net/http"
	"strconv"
)

const dnsPageSize = 5000

// ListDNSRecords returns every record of the zone matching the type and exact name.
// Empty filters are not sent.
func (client *Client) ListDNSRecords(ctx context.Context, zoneID, recordType, name string) ([]DNSRecord, error) {
	records := []DNSRecord{}
	for page := 1; ; page++ {
		endpoint := client.zoneBase(zoneID, "dns_records")
		query := endpoint.Query()
		if recordType != "" {
			query.Set("type", recordType)
		}
		if name != "" {
			query.Set("name.exact", name)
		}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(dnsPageSize))
		endpoint.RawQuery = query.Encode()

		var response apiResponse[[]DNSRecord]
		if err := client.send(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
			return nil, err
		}
		records = append(records, response.Result...)
		if response.lastPage(page) {
			return records, nil
		}
	}
}

// BatchDNSRecords applies deletes and posts to one zone in a single request.
func (client *Client) BatchDNSRecords(ctx context.Context, zoneID string, batch DNSBatch) (DNSBatchResult, error) {
	var response apiResponse[DNSBatchResult]
	if err := client.send(ctx, http.MethodPost, client.zoneBase(zoneID, "dns_records", "batch"), batch, &response); err != nil {
		return DNSBatchResult{}, err
	}
	return response.Result, nil
}
