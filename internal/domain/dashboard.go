package domain

import "context"

const dashboardPageSize = 500

// DashboardStats is the admin overview for the current civil day.
type DashboardStats struct {
	CivilDay            string
	Centers             int
	Sessions            int
	WeeklySessions      int
	OneTimeSessions     int
	ActiveSessions      int
	ActiveCallSessions  int
	OpenActivityLogs    int
	TodayAttendance     int
	TodayLate           int
	TodayDistinctPeople int
}

// DashboardStats counts catalog entries and today's non-deleted attendance.
func (s *Service) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	now := s.civil.Now()
	stats := DashboardStats{CivilDay: s.civil.CivilDate(now)}

	centers, err := s.repo.ListCenters(ctx)
	if err != nil {
		return nil, err
	}
	stats.Centers = len(centers)

	defs, err := s.repo.ListSessions(ctx, SessionFilter{})
	if err != nil {
		return nil, err
	}
	stats.Sessions = len(defs)
	for _, def := range defs {
		if def.Recurrence == RecurrenceWeekly {
			stats.WeeklySessions++
		} else {
			stats.OneTimeSessions++
		}
		if def.IsActive {
			stats.ActiveSessions++
		}
	}

	calls, err := s.repo.ListCallSessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, call := range calls {
		if call.Status == CallSessionActive {
			stats.ActiveCallSessions++
		}
	}

	open, err := s.repo.ListActivityLogs(ctx, ActivityLogFilter{OpenOnly: true})
	if err != nil {
		return nil, err
	}
	stats.OpenActivityLogs = len(open)

	from, to := s.civil.DayBounds(now)
	filter := AttendanceFilter{From: &from, To: &to}
	people := make(map[string]struct{})
	var cursor *Cursor
	for {
		page, next, err := s.repo.ListAttendance(ctx, filter, cursor, dashboardPageSize)
		if err != nil {
			return nil, err
		}
		for _, record := range page {
			stats.TodayAttendance++
			if record.DelayMinutes > 0 {
				stats.TodayLate++
			}
			people[record.AssistantID] = struct{}{}
		}
		if next == nil {
			break
		}
		cursor = next
	}
	stats.TodayDistinctPeople = len(people)
	return &stats, nil
}
