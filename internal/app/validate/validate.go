// Package validate performs structural validation of inbound payloads.
// Cheap checks first: rejections here happen before any cost, budget, or
// feature gate runs.
package validate

import (
	"fmt"

	"github.com/ampli-network/ampli/internal/domain"
)

// MaxPlatforms bounds the share fan-out per request.
const MaxPlatforms = 10

// reject wraps a reason in the validation sentinel.
func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}

// Task checks a task payload and returns its parsed type and priority.
func Task(req domain.TaskRequest) (domain.TaskType, int, error) {
	if req.Tenant == "" {
		return "", 0, fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrMissingTenant)
	}
	if req.Description == "" {
		return "", 0, reject("description is required")
	}
	taskType, ok := domain.ParseTaskType(req.Type)
	if !ok {
		return "", 0, reject("unknown task type %q", req.Type)
	}
	priority, ok := domain.ParsePriority(req.Priority)
	if !ok {
		return "", 0, reject("unknown priority %q", req.Priority)
	}
	if len(req.Platforms) > MaxPlatforms {
		return "", 0, reject("too many platforms: %d (max %d)", len(req.Platforms), MaxPlatforms)
	}
	for _, p := range req.Platforms {
		if p == "" {
			return "", 0, reject("empty platform entry")
		}
	}
	return taskType, priority, nil
}

// Competition checks a competition payload and returns its parsed priority.
func Competition(req domain.CompetitionRequest) (int, error) {
	if req.Tenant == "" {
		return 0, fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrMissingTenant)
	}
	if req.Content == "" {
		return 0, reject("content is required")
	}
	if len(req.Platforms) == 0 {
		return 0, reject("at least one platform is required")
	}
	if len(req.Platforms) > MaxPlatforms {
		return 0, reject("too many platforms: %d (max %d)", len(req.Platforms), MaxPlatforms)
	}
	for _, p := range req.Platforms {
		if p == "" {
			return 0, reject("empty platform entry")
		}
	}
	priority, ok := domain.ParsePriority(req.Priority)
	if !ok {
		return 0, reject("unknown priority %q", req.Priority)
	}
	for _, c := range req.Competitors {
		if c == "" {
			return 0, reject("empty competitor entry")
		}
	}
	return priority, nil
}
