// File path: internal/api/types.go
package api

import (
	"time"

	"github.com/coastalgraphics/orderdesk/internal/oms"
	vsync "github.com/coastalgraphics/orderdesk/internal/vector/sync"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatAnalytics struct {
	TotalResults   int     `json:"totalResults"`
	DataSource     string  `json:"dataSource"`
	ProcessingTime string  `json:"processingTime"`
	Confidence     string  `json:"confidence"`
	SearchStrategy string  `json:"searchStrategy"`
	TopScore       float32 `json:"topScore,omitempty"`
}

type chatMetadata struct {
	QueryProcessed string    `json:"queryProcessed"`
	Timestamp      time.Time `json:"timestamp"`
	Strategy       string    `json:"strategy"`
	Generated      bool      `json:"generated"`
}

type chatResponse struct {
	Success   bool          `json:"success"`
	SessionID string        `json:"sessionId"`
	Message   string        `json:"message"`
	Orders    []oms.Order   `json:"orders"`
	Analytics chatAnalytics `json:"analytics"`
	Metadata  chatMetadata  `json:"metadata"`
}

type componentHealth struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentHealth `json:"components"`
	Sessions   int                        `json:"activeSessions"`
	Timestamp  time.Time                  `json:"timestamp"`
}

type syncResponse struct {
	Success bool         `json:"success"`
	Report  vsync.Report `json:"report"`
	Took    string       `json:"took"`
}

type changesResponse struct {
	Counts  map[string]int  `json:"counts"`
	Changes vsync.ChangeSet `json:"changes"`
}
