package torn_client

const (
	// Base URL
	BaseURL = "https://api.torn.com/v2"

	// API Endpoints
	ProfileEndpoint = "/user/?selections=basic,profile"
	ChainEndpoint   = "/faction/chain"
	BarsEndpoint    = "/user/bars"

	// Query parameters
	KeyParam = "key"

	// APIKeyLength is the length of every game API key
	APIKeyLength = 16
)
