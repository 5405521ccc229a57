package device

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// hoursPerDay converts day counts for warranty window arithmetic.
const hoursPerDay = 24

// noFaultRecords is the MTTR sentinel reported when there is no fault
// history to average over.
const noFaultRecords = "no fault records"

// Statistics summarizes fleet health across all branches.
type Statistics struct {
	TotalDevices int64 `json:"total_devices"`

	// StatusDistribution is the store's grouped count, one row per
	// status value present in the fleet.
	StatusDistribution []StatusCount `json:"status_distribution"`

	// OnlineRate is the share of devices currently ONLINE, formatted to
	// two decimal places with a percent sign (e.g. "66.67%").
	OnlineRate string `json:"online_rate"`

	LastUpdateTime time.Time `json:"last_update_time"`
}

// WarrantyAlert flags a device whose warranty coverage ends within the
// lookahead window.
type WarrantyAlert struct {
	DeviceID             string    `json:"device_id"`
	DeviceName           string    `json:"device_name"`
	DeviceType           string    `json:"device_type"`
	Branch               string    `json:"branch,omitempty"`
	InstallDate          time.Time `json:"install_date"`
	WarrantyPeriodMonths int       `json:"warranty_period_months"`
	WarrantyEndDate      time.Time `json:"warranty_end_date"`
	DaysRemaining        int       `json:"days_remaining"`
}

// FaultAnalysis is the fleet-wide fault and repair-time summary.
type FaultAnalysis struct {
	FaultCodes  []FaultCodeStats `json:"fault_analysis"`
	TotalFaults int64            `json:"total_faults"`

	// OverallMTTR is the count-weighted mean time to repair across all
	// fault codes, formatted to one decimal place with a unit suffix
	// (e.g. "12.5 min"), or "no fault records" when there are none.
	OverallMTTR string `json:"overall_mttr"`
}

// BranchHealth is the per-branch fleet health summary.
type BranchHealth struct {
	BranchStats []BranchCount `json:"branch_stats"`

	// OverallOnlineRate is the online share across all branches
	// combined, formatted like Statistics.OnlineRate, or "0%" for an
	// empty fleet.
	OverallOnlineRate string `json:"overall_online_rate"`

	Timestamp time.Time `json:"timestamp"`
}

// GetStatistics computes fleet totals, the per-status distribution and
// the online rate. An empty fleet reports an online rate of "0.00%"
// rather than dividing by zero.
func (s *Service) GetStatistics(ctx context.Context) (*Statistics, error) {
	total, err := s.store.CountAll(ctx)
	if err != nil {
		return nil, err
	}

	distribution, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	var online int64
	for _, sc := range distribution {
		if sc.Status == StatusOnline {
			online = sc.Count
			break
		}
	}

	return &Statistics{
		TotalDevices:       total,
		StatusDistribution: distribution,
		OnlineRate:         formatRate(online, total),
		LastUpdateTime:     s.now().UTC(),
	}, nil
}

// GetWarrantyAlerts returns the devices whose warranty end date falls
// within [today, today+lookahead], boundaries included, ordered by days
// remaining ascending. Devices without an install date or warranty
// period are never flagged.
func (s *Service) GetWarrantyAlerts(ctx context.Context) ([]WarrantyAlert, error) {
	devices, err := s.store.SelectAll(ctx)
	if err != nil {
		return nil, err
	}

	today := truncateToDay(s.now().UTC())

	alerts := make([]WarrantyAlert, 0)
	for i := range devices {
		d := &devices[i]
		end, ok := d.WarrantyEndDate()
		if !ok {
			continue
		}
		end = truncateToDay(end.UTC())

		days := int(end.Sub(today).Hours() / hoursPerDay)
		if days < 0 || days > s.warrantyLookaheadDays {
			continue
		}

		alerts = append(alerts, WarrantyAlert{
			DeviceID:             d.DeviceID,
			DeviceName:           d.DeviceName,
			DeviceType:           d.DeviceType,
			Branch:               d.Branch,
			InstallDate:          d.InstallDate,
			WarrantyPeriodMonths: d.WarrantyPeriodMonths,
			WarrantyEndDate:      end,
			DaysRemaining:        days,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].DaysRemaining < alerts[j].DaysRemaining
	})

	return alerts, nil
}

// GetFaultAnalysis aggregates the fault record source's per-code stats
// into a fleet summary. The overall MTTR is the count-weighted average
// of the per-code average fix times:
//
//	sum(avg[code] * count[code]) / sum(count[code])
//
// With no fault records the MTTR reports a "no fault records" sentinel
// instead of dividing by zero.
func (s *Service) GetFaultAnalysis(ctx context.Context) (*FaultAnalysis, error) {
	if s.faults == nil {
		return &FaultAnalysis{
			FaultCodes:  []FaultCodeStats{},
			OverallMTTR: noFaultRecords,
		}, nil
	}

	codes, err := s.faults.FaultRecordsByCode(ctx)
	if err != nil {
		return nil, err
	}

	var totalFaults int64
	var weighted float64
	for _, c := range codes {
		totalFaults += c.FaultCount
		weighted += c.AvgFixTimeMinutes * float64(c.FaultCount)
	}

	mttr := noFaultRecords
	if totalFaults > 0 {
		mttr = fmt.Sprintf("%.1f min", weighted/float64(totalFaults))
	}

	return &FaultAnalysis{
		FaultCodes:  codes,
		TotalFaults: totalFaults,
		OverallMTTR: mttr,
	}, nil
}

// GetBranchHealthStats computes per-branch totals with a combined
// online rate across all branches. An empty fleet reports "0%".
func (s *Service) GetBranchHealthStats(ctx context.Context) (*BranchHealth, error) {
	branches, err := s.store.CountByBranch(ctx)
	if err != nil {
		return nil, err
	}

	var total, online int64
	for _, b := range branches {
		total += b.Total
		online += b.Online
	}

	rate := "0%"
	if total > 0 {
		rate = formatRate(online, total)
	}

	return &BranchHealth{
		BranchStats:       branches,
		OverallOnlineRate: rate,
		Timestamp:         s.now().UTC(),
	}, nil
}

// formatRate formats count/total as a percentage with two decimal
// places. A zero total yields "0.00%".
func formatRate(count, total int64) string {
	if total <= 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(count)*100/float64(total))
}

// truncateToDay drops the time-of-day component, keeping the date in UTC.
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
