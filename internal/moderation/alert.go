package moderation

import (
	"context"

	"kindred/backend/internal/analysis"
	"kindred/backend/internal/models"
)

// Alerter pushes moderation events to humans. Delivery is best effort:
// callers log a failed alert and carry on.
type Alerter interface {
	ReportFiled(ctx context.Context, r *models.Report) error
	SpecialistRequested(ctx context.Context, who models.Identity) error
	CrisisFlags(ctx context.Context, flags []analysis.Flag) error
}

// NopAlerter drops every alert.
type NopAlerter struct{}

func (NopAlerter) ReportFiled(context.Context, *models.Report) error { return nil }
func (NopAlerter) SpecialistRequested(context.Context, models.Identity) error { return nil }
func (NopAlerter) CrisisFlags(context.Context, []analysis.Flag) error { return nil }
