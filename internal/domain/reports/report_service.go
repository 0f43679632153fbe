package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/atoyama/workmate-api/internal/types"
)

// ReportType is the closed set of reports a user can request.
type ReportType string

const (
	ReportTaskSummary     ReportType = "task_summary"
	ReportProductivity    ReportType = "productivity"
	ReportTeamPerformance ReportType = "team_performance"
)

// Report is the generated document returned to the caller. Data holds
// the type-specific payload.
type Report struct {
	Type        ReportType `json:"type"`
	GeneratedAt time.Time  `json:"generated_at"`
	Summary     string     `json:"summary"`
	Data        any        `json:"data"`
}

// SuggestionWriter appends the follow-up analysis suggestion.
type SuggestionWriter interface {
	Append(ctx context.Context, userID uuid.UUID, category types.SuggestionCategory, title, content string, priority int) error
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Generate(ctx context.Context, userID uuid.UUID, reportType ReportType) (*Report, error)
}

type ServiceImpl struct {
	logger      *slog.Logger
	repo        Repository
	suggestions SuggestionWriter
}

func NewServiceImpl(repo Repository, suggestions SuggestionWriter, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{logger: logger, repo: repo, suggestions: suggestions}
}

func (s *ServiceImpl) Generate(ctx context.Context, userID uuid.UUID, reportType ReportType) (*Report, error) {
	ctx, span := otel.Tracer("ReportService").Start(ctx, "Generate", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("report.type", string(reportType)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Generate"), slog.String("userID", userID.String()), slog.String("reportType", string(reportType)))

	var (
		report *Report
		err    error
	)
	switch reportType {
	case ReportTaskSummary:
		report, err = s.taskSummary(ctx, userID)
	case ReportProductivity:
		report, err = s.productivity(ctx, userID)
	case ReportTeamPerformance:
		report, err = s.teamPerformance(ctx)
	default:
		span.SetStatus(codes.Error, "Unknown report type")
		return nil, fmt.Errorf("unknown report type %q: %w", reportType, types.ErrBadRequest)
	}
	if err != nil {
		l.ErrorContext(ctx, "Failed to generate report", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Report generation failed")
		return nil, err
	}

	if err := s.suggestions.Append(ctx, userID, types.CategoryPerformance,
		"Your report is ready",
		fmt.Sprintf("Sara looked over your %s report: %s", reportType, report.Summary),
		6,
	); err != nil {
		l.WarnContext(ctx, "Failed to append report suggestion", slog.Any("error", err))
	}

	l.InfoContext(ctx, "Report generated")
	span.SetStatus(codes.Ok, "Report generated")
	return report, nil
}

func (s *ServiceImpl) taskSummary(ctx context.Context, userID uuid.UUID) (*Report, error) {
	counts, err := s.repo.CountByStatus(ctx, userID)
	if err != nil {
		return nil, err
	}

	total := 0
	completed := 0
	for _, c := range counts {
		total += c.Count
		if c.Status == types.TaskStatusCompleted {
			completed = c.Count
		}
	}

	return &Report{
		Type:        ReportTaskSummary,
		GeneratedAt: time.Now(),
		Summary:     fmt.Sprintf("%d of %d assigned tasks are completed.", completed, total),
		Data:        counts,
	}, nil
}

func (s *ServiceImpl) productivity(ctx context.Context, userID uuid.UUID) (*Report, error) {
	since := time.Now().AddDate(0, 0, -30)

	completed, err := s.repo.CompletedSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.CreatedSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	data := map[string]int{
		"completed_last_30_days": completed,
		"created_last_30_days":   created,
	}
	return &Report{
		Type:        ReportProductivity,
		GeneratedAt: time.Now(),
		Summary:     fmt.Sprintf("In the last 30 days you completed %d tasks and created %d.", completed, created),
		Data:        data,
	}, nil
}

func (s *ServiceImpl) teamPerformance(ctx context.Context) (*Report, error) {
	stats, err := s.repo.TeamStats(ctx)
	if err != nil {
		return nil, err
	}

	summary := "No team activity yet."
	if len(stats) > 0 {
		summary = fmt.Sprintf("%s leads the team with %d completed tasks.", stats[0].DisplayName, stats[0].Completed)
	}
	return &Report{
		Type:        ReportTeamPerformance,
		GeneratedAt: time.Now(),
		Summary:     summary,
		Data:        stats,
	}, nil
}
