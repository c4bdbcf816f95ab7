package models

// Requests for the runs HTTP endpoints.

type RunRequest struct {
	Path      string `json:"path" validate:"required_without=DatasetID"`
	DatasetID string `json:"dataset_id" validate:"required_without=Path"`
	Persist   bool   `json:"persist"`
}

type RunLookupRequest struct {
	ID string `param:"id" validate:"required"`
}

type DailyRequest struct {
	ID             string `param:"id" validate:"required"`
	Classification string `query:"classification" validate:"omitempty,oneof=FUERTE INTERMEDIO LATERAL"`
	Limit          int    `query:"limit" default:"500" validate:"gte=1,lte=10000"`
}

type SessionsRequest struct {
	ID      string `param:"id" validate:"required"`
	Session string `query:"session" validate:"omitempty,oneof=ASIA EUROPE NY"`
	Limit   int    `query:"limit" default:"1500" validate:"gte=1,lte=30000"`
}

type PredictRequest struct {
	ID          string  `param:"id" validate:"required"`
	Date        string  `query:"date" validate:"omitempty,datetime=2006-01-02"`
	AsiaRange   float64 `query:"asia_range" validate:"gte=0"`
	EuropeRange float64 `query:"europe_range" validate:"gte=0"`
}

type ClassifyClockRequest struct {
	Time string `query:"time" validate:"required,datetime=15:04"`
}

type CompareRequest struct {
	Runs []string `query:"run" validate:"min=1,max=8,dive,required"`
}
