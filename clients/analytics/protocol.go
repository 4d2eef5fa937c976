package analytics

// SessionCookie carries the session identity between calls.
const SessionCookie = "session_id"

// Endpoints are the service paths, relative to the base URL.
type Endpoints struct {
	StartSession string
	UploadCSV    string
	Query        string
	EndSession   string
}

// DefaultEndpoints returns the stock service paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		StartSession: "/start_session",
		UploadCSV:    "/upload_csv",
		Query:        "/query",
		EndSession:   "/end_session",
	}
}

// InformationResponse is returned by start, upload and end.
type InformationResponse struct {
	InformationMessage string `json:"informationMessage"`
}

// QueryRequest is the body of a query call.
type QueryRequest struct {
	HumanMessage string `json:"humanMessage"`
}

// QueryResponse carries the answer to a query.
type QueryResponse struct {
	AIMessage string `json:"aiMessage"`
}

// ErrorResponse is the error body the service sends with non-2xx statuses.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
