package domain

import "time"

// Layouts shared by the ledger, the aggregate records and the income log.
const (
	DayLayout       = "02.01.2006"
	TimestampLayout = "2006-01-02 15:04:05"
)

// StatusApproved is the only postback status that counts towards commission.
const StatusApproved = "1"

type Outcome string

const (
	OutcomeAggregated Outcome = "aggregated"
	OutcomeLeadOnly   Outcome = "lead_only"
	OutcomeDropped    Outcome = "dropped"
)

// Postback is a callback from an affiliate network. Parameter values are
// kept exactly as received.
type Postback struct {
	ID         string    `json:"id"`
	Sub1       string    `json:"sub1"`
	Sub5       string    `json:"sub5"`
	Sub6       string    `json:"sub6"`
	Sum        string    `json:"sum"`
	Status     string    `json:"status"`
	Date       string    `json:"date,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// PostbackRecord is the audit row stored for every received postback.
type PostbackRecord struct {
	Postback
	Group        string  `json:"group,omitempty"`
	Outcome      Outcome `json:"outcome"`
	LeadCaptured bool    `json:"lead_captured"`
	Reason       string  `json:"reason,omitempty"`
}
