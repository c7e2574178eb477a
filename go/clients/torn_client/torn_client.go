package torn_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/mcdev12/chainwatch/go/clients"
)

type TornClient struct {
	*clients.BaseClient
}

// NewTornClient creates a client for baseURL, or BaseURL when empty
func NewTornClient(baseURL string) *TornClient {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &TornClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}
}

// GetProfile returns the profile of the key's owner
func (c *TornClient) GetProfile(ctx context.Context, apiKey string) (*Profile, error) {
	var resp profileResponse
	if err := c.get(ctx, ProfileEndpoint, apiKey, &resp); err != nil {
		return nil, err
	}
	if resp.Profile == nil {
		return nil, fmt.Errorf("%w: profile missing from response", clients.ErrUpstream)
	}
	return resp.Profile, nil
}

// GetChain returns the chain of the key owner's faction
func (c *TornClient) GetChain(ctx context.Context, apiKey string) (*Chain, error) {
	var resp chainResponse
	if err := c.get(ctx, ChainEndpoint, apiKey, &resp); err != nil {
		return nil, err
	}
	if resp.Chain == nil {
		return nil, fmt.Errorf("%w: chain missing from response", clients.ErrUpstream)
	}
	return resp.Chain, nil
}

// GetEnergy returns the key owner's energy bar
func (c *TornClient) GetEnergy(ctx context.Context, apiKey string) (*Energy, error) {
	var resp barsResponse
	if err := c.get(ctx, BarsEndpoint, apiKey, &resp); err != nil {
		return nil, err
	}
	if resp.Bars.Energy == nil {
		return nil, fmt.Errorf("%w: energy missing from response", clients.ErrUpstream)
	}
	return &Energy{Current: resp.Bars.Energy.Current, Max: resp.Bars.Energy.Maximum}, nil
}

// get fetches endpoint with the key and decodes the body into out.
// Game API errors arrive with status 200 and are returned as *APIError.
func (c *TornClient) get(ctx context.Context, endpoint, apiKey string, out any) error {
	body, err := c.Get(ctx, endpoint, url.Values{KeyParam: {apiKey}})
	if err != nil {
		return err
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", clients.ErrUpstream, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: unexpected response shape: %v", clients.ErrUpstream, err)
	}
	return nil
}
