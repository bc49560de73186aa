package adsplatform

// listAccessibleResponse is the body of customers:listAccessibleCustomers.
type listAccessibleResponse struct {
	ResourceNames []string `json:"resourceNames"`
}

// searchRequest is the body of googleAds:search.
type searchRequest struct {
	Query string `json:"query"`
}

// searchResponse is one page of googleAds:search results.
type searchResponse struct {
	Results       []searchRow `json:"results"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

type searchRow struct {
	CustomerClient *customerClient `json:"customerClient,omitempty"`
}

// customerClient is a link in the account hierarchy under the queried
// customer. Int64 fields arrive as JSON strings.
type customerClient struct {
	ID              string `json:"id"`
	Level           string `json:"level"`
	Manager         bool   `json:"manager"`
	DescriptiveName string `json:"descriptiveName,omitempty"`
}

// apiErrorResponse is the error envelope of the REST API.
type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
