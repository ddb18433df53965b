package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
)

const unknownDepartment = "Unknown"

// MonthlyStats returns one entry per calendar month, Jan through Dec, with
// months that saw no requests reported as zero.
func (s *leaveService) MonthlyStats(ctx context.Context) ([]MonthlyLeaveStat, error) {
	counts, err := s.repo.LeaveRequest().CountByMonth(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count leave requests by month: %w", err)
	}

	byMonth := make(map[int]int64, len(counts))
	for _, c := range counts {
		byMonth[c.Month] += c.Count
	}

	stats := make([]MonthlyLeaveStat, 0, 12)
	for m := time.January; m <= time.December; m++ {
		stats = append(stats, MonthlyLeaveStat{
			Month: m.String()[:3],
			Count: byMonth[int(m)],
		})
	}
	return stats, nil
}

// DepartmentStats groups leave outcomes by the department on the student's
// identity provider profile. Students without a resolvable profile count
// under "Unknown".
func (s *leaveService) DepartmentStats(ctx context.Context) ([]DepartmentLeaveStat, error) {
	counts, err := s.repo.LeaveRequest().CountByStudentAndStatus(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count leave requests by student: %w", err)
	}
	if len(counts) == 0 {
		return []DepartmentLeaveStat{}, nil
	}

	seen := make(map[string]bool, len(counts))
	ids := make([]string, 0, len(counts))
	for _, c := range counts {
		if !seen[c.StudentID] {
			seen[c.StudentID] = true
			ids = append(ids, c.StudentID)
		}
	}

	departments := make(map[string]string, len(ids))
	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load student profiles for department stats",
			"count", len(ids),
			"error", err)
	}
	for _, u := range users {
		departments[u.ID] = u.Department
	}

	byDept := make(map[string]*DepartmentLeaveStat)
	for _, c := range counts {
		dept := departments[c.StudentID]
		if dept == "" {
			dept = unknownDepartment
		}
		stat, ok := byDept[dept]
		if !ok {
			stat = &DepartmentLeaveStat{Department: dept}
			byDept[dept] = stat
		}

		switch c.Status {
		case models.LeaveApproved:
			stat.Approved += c.Count
		case models.LeavePending, models.LeaveTesting:
			stat.Pending += c.Count
		case models.LeaveRejected, models.LeaveAutoRejected:
			stat.Rejected += c.Count
		}
		stat.Total += c.Count
	}

	stats := make([]DepartmentLeaveStat, 0, len(byDept))
	for _, stat := range byDept {
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Department < stats[j].Department })
	return stats, nil
}
