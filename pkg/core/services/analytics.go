package services

import (
	"context"
	"time"

	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
)

const (
	defaultDays   = 30
	maxDays       = 365
	breakdownSize = 10
)

func clampDays(days int) int {
	if days < 1 {
		return defaultDays
	}
	if days > maxDays {
		return maxDays
	}
	return days
}

func since(now time.Time, days int) time.Time {
	return now.UTC().AddDate(0, 0, -days)
}

func buildLinkAnalytics(ctx context.Context, repo ports.LinkRepository, link *domain.Link, days int, now time.Time) (*domain.LinkAnalytics, error) {
	daily, err := repo.DailyClicks(ctx, link.ID, since(now, days))
	if err != nil {
		return nil, err
	}

	report := &domain.LinkAnalytics{Link: link, Daily: daily}
	for _, b := range []struct {
		dim  domain.Dimension
		dest *[]domain.Bucket
	}{
		{domain.DimensionBrowser, &report.Browsers},
		{domain.DimensionOS, &report.OS},
		{domain.DimensionDevice, &report.Devices},
		{domain.DimensionReferrer, &report.Referrers},
	} {
		buckets, err := repo.Breakdown(ctx, link.ID, b.dim, breakdownSize)
		if err != nil {
			return nil, err
		}
		*b.dest = buckets
	}
	return report, nil
}
