package runlog

import (
	"context"
	"errors"

	"coingecko_etl/models"
)

// Recorder stores run reports for later inspection
type Recorder interface {
	Record(ctx context.Context, report models.RunReport) error
	Recent(ctx context.Context, limit int) ([]models.RunReport, error)
}

// Multi records into every recorder and reads from the first one
type Multi []Recorder

// Record writes to all recorders and joins their errors
func (m Multi) Record(ctx context.Context, report models.RunReport) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recent reads from the first recorder
func (m Multi) Recent(ctx context.Context, limit int) ([]models.RunReport, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m[0].Recent(ctx, limit)
}
