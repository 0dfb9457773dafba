package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"zawj-chat/internal/models"
	"zawj-chat/internal/repositories"
	"zawj-chat/pkg/logger"
)

const minReportDetails = 20

// ReportService files moderation reports against other members.
type ReportService struct {
	reports repositories.ReportRepository
	users   repositories.UserRepository
	logger  *logger.Logger
}

func NewReportService(reports repositories.ReportRepository, users repositories.UserRepository, log *logger.Logger) *ReportService {
	return &ReportService{reports: reports, users: users, logger: log}
}

func (s *ReportService) Submit(ctx context.Context, userID, reportedID string, req *models.ReportRequest) (*models.Report, error) {
	if userID == reportedID {
		return nil, ErrSelfAction
	}
	category := strings.TrimSpace(req.Category)
	if !models.ValidReportCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidRequest, req.Category)
	}
	details := strings.TrimSpace(req.Details)
	if utf8.RuneCountInString(details) < minReportDetails {
		return nil, fmt.Errorf("%w: details must be at least %d characters", ErrInvalidRequest, minReportDetails)
	}
	if _, err := s.users.FindByID(ctx, reportedID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	report := models.Report{
		UserID:         userID,
		ReportedUserID: reportedID,
		Category:       category,
		Details:        details,
		ContactOK:      req.ContactOK,
	}
	if err := s.reports.Create(ctx, &report); err != nil {
		s.logger.Error("Failed to store report", "userID", userID, "reportedUserID", reportedID, "error", err)
		return nil, fmt.Errorf("failed to submit report: %w", err)
	}

	s.logger.Info("Report submitted", "reportID", report.ID, "userID", userID, "reportedUserID", reportedID, "category", category)
	return &report, nil
}
