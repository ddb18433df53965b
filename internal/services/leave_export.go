package services

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
)

const exportSheet = "Leave Requests"

var exportHeader = []interface{}{
	"ID", "Student ID", "Student Name", "Email", "Leave Type", "Start Date", "End Date",
	"Status", "Overall Score", "Passing Threshold", "Auto Approved",
	"Round 1 Score", "Round 2 Score", "Tab Switches", "Copy Attempts",
	"Reviewed By", "Review Comments", "Created At",
}

// Export renders every request matching filters, ignoring pagination, as an
// XLSX workbook
func (s *leaveService) Export(ctx context.Context, filters repositories.LeaveFilters) ([]byte, error) {
	s.logger.InfoContext(ctx, "Starting leave request export", "status", filters.Status)

	filters.Limit, filters.Offset = -1, 0
	list, err := s.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.WarnContext(ctx, "Failed to close workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("failed to name export sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("failed to write export header: %w", err)
	}

	for i, leave := range list.Leaves {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to address export row: %w", err)
		}
		row := exportRow(leave)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write export row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render export: %w", err)
	}

	s.logger.InfoContext(ctx, "Leave request export completed successfully", "rows", len(list.Leaves))
	return buf.Bytes(), nil
}

func exportRow(leave *LeaveResponse) []interface{} {
	name, email := "", ""
	if leave.Student != nil {
		name, email = leave.Student.FullName, leave.Student.Email
	}

	roundScores := [2]string{"", ""}
	tabSwitches, copyAttempts := 0, 0
	for _, r := range leave.Rounds {
		if r.RoundNumber >= 1 && r.RoundNumber <= len(roundScores) && r.Status == models.SessionCompleted {
			roundScores[r.RoundNumber-1] = fmt.Sprintf("%d/%d", r.Score, r.TotalPoints)
		}
		tabSwitches += r.TabSwitches
		copyAttempts += r.CopyAttempts
	}

	reviewedBy, comments := "", ""
	if leave.AdminReview.ReviewedBy != nil {
		reviewedBy = *leave.AdminReview.ReviewedBy
	}
	if leave.AdminReview.Comments != nil {
		comments = *leave.AdminReview.Comments
	}

	return []interface{}{
		leave.ID, leave.StudentID, name, email, string(leave.LeaveType),
		leave.StartDate.Format(models.DateLayout), leave.EndDate.Format(models.DateLayout),
		string(leave.Status), fmt.Sprintf("%.2f", leave.OverallScore), leave.PassingThreshold, leave.AutoApproved,
		roundScores[0], roundScores[1], tabSwitches, copyAttempts,
		reviewedBy, comments, leave.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
