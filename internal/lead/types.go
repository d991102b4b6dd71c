package lead

import "time"

// UnknownAuthor is stored when a post has no (or a deleted) author.
const UnknownAuthor = "N/A"

// Trigger identifies what started a scan pass.
type Trigger string

// Trigger values persisted with each scan run.
const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// ScanStatus represents the lifecycle state of a scan run.
type ScanStatus string

// Scan status values persisted in the scan_runs table.
const (
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusSucceeded ScanStatus = "succeeded"
	ScanStatusFailed    ScanStatus = "failed"
)

// Post is a candidate returned by a forum search. It is never persisted as-is.
type Post struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Score        int       `json:"score"`
	CommentCount int       `json:"comment_count"`
	Author       string    `json:"author,omitempty"`
	URL          string    `json:"url"`
	Channel      string    `json:"channel"`
	CreatedAt    time.Time `json:"created_at"`
}

// Text returns the combined title and body used for sentiment analysis.
func (p Post) Text() string {
	return p.Title + " " + p.Body
}

// Lead is a persisted, deduplicated hiring post.
type Lead struct {
	ID        int64     `json:"id"`
	Score     int       `json:"score"`
	Title     string    `json:"title"`
	Channel   string    `json:"channel"`
	URL       string    `json:"url"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// FromPost maps a relevant post and its rank into an unsaved Lead.
func FromPost(p Post, score int) Lead {
	author := p.Author
	if author == "" || author == "[deleted]" {
		author = UnknownAuthor
	}
	return Lead{
		Score:   score,
		Title:   p.Title,
		Channel: p.Channel,
		URL:     p.URL,
		Author:  author,
	}
}

// SearchQuery describes one (channel, keyword) search.
type SearchQuery struct {
	Channel string
	Keyword string
	Sort    string
	Window  string
}

// ScanRun is the persisted record of one scan pass.
type ScanRun struct {
	ID           string     `json:"id"`
	Trigger      Trigger    `json:"trigger"`
	Status       ScanStatus `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	NewLeads     int        `json:"new_leads"`
	SearchErrors int        `json:"search_errors"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// ChannelResult summarizes one channel within a pass.
type ChannelResult struct {
	Channel      string `json:"channel"`
	Evaluated    int    `json:"evaluated"`
	Relevant     int    `json:"relevant"`
	NewLeads     int    `json:"new_leads"`
	SearchErrors int    `json:"search_errors"`
}

// ScanResult is returned by a completed scan pass.
type ScanResult struct {
	ScanID       string          `json:"scan_id"`
	Trigger      Trigger         `json:"trigger"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	NewLeads     int             `json:"new_leads"`
	SearchErrors int             `json:"search_errors"`
	Channels     []ChannelResult `json:"channels"`
	Leads        []Lead          `json:"leads"`
}

// Event is published once per newly inserted lead.
type Event struct {
	ScanID string `json:"scan_id"`
	Lead   Lead   `json:"lead"`
}
