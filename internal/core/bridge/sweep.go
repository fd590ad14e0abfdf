package bridge

import (
	"context"
	"fmt"
	"log/slog"
)

// RefreshSweep proactively refreshes every connected identity whose token
// is inside the refresh buffer. Invoked by an external scheduler; the
// bridge runs no scheduler of its own.
//
// Each identity's refresh is independent: one failure (network error,
// revoked session) never aborts or blocks the rest. Failures are counted
// into the summary instead of raised.
func (m *CredentialManager) RefreshSweep(ctx context.Context) (*SweepResult, error) {
	accountIDs, err := m.repo.ListConnectedAccountIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connected accounts: %w", err)
	}

	result := &SweepResult{}
	for _, accountID := range accountIDs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		cred, err := m.repo.GetCredentials(ctx, accountID)
		if err != nil {
			result.Failed++
			m.logger.Warn("sweep: failed to load credentials",
				slog.Int64("accountId", accountID),
				slog.String("error", err.Error()),
			)
			continue
		}

		if !m.NeedsRefresh(cred.ExpiresAt) {
			result.Skipped++
			continue
		}

		if _, err := m.Refresh(ctx, accountID); err != nil {
			result.Failed++
			m.logger.Warn("sweep: refresh failed",
				slog.Int64("accountId", accountID),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Refreshed++
	}

	m.logger.Info("refresh sweep completed",
		slog.Int("refreshed", result.Refreshed),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
	)

	return result, nil
}
