// Package usage reports embedding token consumption against the configured
// budgets.
package usage

import (
	"context"
	"time"
)

// Period selects the reporting window.
type Period string

const (
	// PeriodDay reports the current UTC day.
	PeriodDay Period = "day"
	// PeriodMonth reports the current UTC month.
	PeriodMonth Period = "month"
)

// Budget describes one budget window.
type Budget struct {
	Limit     int64 `json:"limit"`
	Used      int64 `json:"used"`
	Remaining int64 `json:"remaining"`
	Exhausted bool  `json:"exhausted"`
}

// Report is the usage snapshot for one period.
type Report struct {
	Period   Period `json:"period"`
	StartsAt int64  `json:"starts_at"`
	ResetsAt int64  `json:"resets_at"`
	Tokens   Budget `json:"tokens"`
}

// Service handles usage reporting.
type Service struct {
	br BudgetReader
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader) *Service {
	return &Service{br: br}
}

// GetReport builds a usage report for the given period. Unknown periods fall
// back to the monthly window.
func (s *Service) GetReport(_ context.Context, period Period) Report {
	now := time.Now().UTC()

	var start, end time.Time
	var limit, used, remaining int64

	switch period {
	case PeriodDay:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		end = start.Add(24 * time.Hour)
		if s.br != nil {
			limit = s.br.DailyLimit()
			used = s.br.DailyUsed()
			remaining = s.br.RemainingDaily()
		}
	default:
		period = PeriodMonth
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
		if s.br != nil {
			limit = s.br.MonthlyLimit()
			used = s.br.MonthlyUsed()
			remaining = s.br.RemainingMonthly()
		}
	}

	return Report{
		Period:   period,
		StartsAt: start.UnixMilli(),
		ResetsAt: end.UnixMilli(),
		Tokens: Budget{
			Limit:     limit,
			Used:      used,
			Remaining: remaining,
			Exhausted: limit > 0 && remaining <= 0,
		},
	}
}
