package runlog

import (
	"context"
	"sync"

	"coingecko_etl/models"
)

// MemoryRecorder keeps the most recent reports in process
type MemoryRecorder struct {
	mu       sync.RWMutex
	reports  []models.RunReport
	capacity int
}

// NewMemoryRecorder creates a recorder holding at most capacity reports
func NewMemoryRecorder(capacity int) *MemoryRecorder {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryRecorder{
		reports:  make([]models.RunReport, 0, capacity),
		capacity: capacity,
	}
}

// Record appends a report, evicting the oldest one when full
func (m *MemoryRecorder) Record(_ context.Context, report models.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.reports) == m.capacity {
		copy(m.reports, m.reports[1:])
		m.reports = m.reports[:len(m.reports)-1]
	}
	m.reports = append(m.reports, report)
	return nil
}

// Recent returns up to limit reports, newest first
func (m *MemoryRecorder) Recent(_ context.Context, limit int) ([]models.RunReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.reports) {
		limit = len(m.reports)
	}

	result := make([]models.RunReport, 0, limit)
	for i := len(m.reports) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, m.reports[i])
	}
	return result, nil
}

// Last returns the newest report
func (m *MemoryRecorder) Last() (models.RunReport, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.reports) == 0 {
		return models.RunReport{}, false
	}
	return m.reports[len(m.reports)-1], true
}
