package models

// Pipeline stages reported in Progress events.
const (
	StageSearch = "search"
	StageScrape = "scrape"
)

// Progress is emitted after every finished task of a dispatch stage.
// Count is the running aggregate: raw results during search, leads during scrape.
type Progress struct {
	Stage     string `json:"stage"`
	Completed int    `json:"current"`
	Total     int    `json:"total"`
	Count     int    `json:"count"`
}

// RunStats counts what happened during a campaign run.
type RunStats struct {
	Queries     int `json:"queries"`
	RawResults  int `json:"raw_results"`
	Unique      int `json:"unique_results"`
	Selected    int `json:"selected"`
	Fallback    int `json:"fallback"`
	Scraped     int `json:"scraped"`
	Failed      int `json:"failed"`
	RateLimited int `json:"rate_limited"`
	Duplicates  int `json:"near_duplicates"`
	Leads       int `json:"leads"`
}

// RunReport is the aggregate output of one campaign run.
type RunReport struct {
	Campaign  Campaign     `json:"campaign"`
	Strategy  Strategy     `json:"strategy"`
	Stats     RunStats     `json:"stats"`
	Leads     []LeadRecord `json:"leads"`
	StartedAt int64        `json:"started_at"`
	EndedAt   int64        `json:"ended_at"`
}
