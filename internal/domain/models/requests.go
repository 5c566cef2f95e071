package models

// Requests for analytics HTTP endpoints. Defined in domain for consistency and reuse.

type SeriesQuery struct {
	Metric   string `query:"metric" json:"metric" validate:"required"`
	Resource string `query:"resource" json:"resource"`
	Team     string `query:"team" json:"team"`
	Project  string `query:"project" json:"project"`
	From     string `query:"from" json:"from"`
	To       string `query:"to" json:"to"`
	N        int    `query:"n" json:"n" default:"1000" validate:"gte=1,lte=20000"`
}

type MetricsRequest struct {
	SeriesQuery
	Level float64 `query:"level" json:"level" default:"0.95" validate:"gt=0,lt=1"`
}

type RollingRequest struct {
	SeriesQuery
	Window string `query:"window" json:"window" default:"7D" validate:"required"`
}

type AggregateRequest struct {
	SeriesQuery
	Period  string `query:"period" json:"period" default:"daily" validate:"oneof=hourly daily weekly monthly quarterly"`
	GroupBy string `query:"group_by" json:"group_by" validate:"omitempty,oneof=team project resource_id"`
}

type ForecastRequest struct {
	SeriesQuery
	Horizon string  `query:"horizon" json:"horizon" default:"short" validate:"required"`
	Level   float64 `query:"level" json:"level" default:"0.95" validate:"gt=0,lt=1"`
}

type AllocationRequest struct {
	SeriesQuery
	Horizon  string  `query:"horizon" json:"horizon" default:"medium" validate:"required"`
	Capacity float64 `query:"capacity" json:"capacity" default:"1" validate:"gt=0"`
	Headroom float64 `query:"headroom" json:"headroom" validate:"gte=0,lte=10"`
	MinUnits float64 `query:"min_units" json:"min_units" validate:"gte=0"`
}

type BottleneckRequest struct {
	SeriesQuery
	Threshold float64 `query:"threshold" json:"threshold" validate:"gte=0"`
	Publish   bool    `query:"publish" json:"publish"`
}

// InlineSeriesRequest carries raw points in the body. Timestamps may be ISO-8601
// strings or epoch milliseconds.
type InlineSeriesRequest struct {
	Metric  string           `json:"metric" validate:"required"`
	Horizon string           `json:"horizon" default:"short" validate:"required"`
	Level   float64          `json:"level" default:"0.95" validate:"gt=0,lt=1"`
	Points  []map[string]any `json:"points" validate:"required,min=1,max=20000"`
}
