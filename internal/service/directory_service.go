package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/apperr"
	"github.com/amitoj1996/fieldops-web/internal/auth"
	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
	"github.com/amitoj1996/fieldops-web/internal/repository"
)

// DirectoryService tracks identities seen by the system and answers the
// assignee picker: the union of seen users and everyone already named on
// a task.
type DirectoryService interface {
	RecordSeen(ctx context.Context, tenantID string, p auth.Principal) (*entity.Assignee, error)
	ListAssignees(ctx context.Context, tenantID string) ([]string, error)
}

type directoryServiceImpl struct {
	assignees *repository.AssigneeRepository
	tasks     *repository.TaskRepository
	logger    *zap.Logger
}

// NewDirectoryService creates a new DirectoryService
func NewDirectoryService(assignees *repository.AssigneeRepository, tasks *repository.TaskRepository, logger *zap.Logger) DirectoryService {
	return &directoryServiceImpl{assignees: assignees, tasks: tasks, logger: logger}
}

// RecordSeen upserts the caller's identity record, refreshing its
// last-seen stamp.
func (s *directoryServiceImpl) RecordSeen(ctx context.Context, tenantID string, p auth.Principal) (*entity.Assignee, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("tenantId is required")
	}
	identity := p.Identity()
	if identity == "" {
		return nil, apperr.Forbidden("caller has no identity")
	}

	a := &entity.Assignee{
		ID:       identity,
		TenantID: tenantID,
		DocType:  entity.DocTypeAssignee,
		Email:    identity,
	}
	if err := s.assignees.Upsert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAssignees returns the sorted, de-duplicated union of seen
// identities and every assignee already named on a task.
func (s *directoryServiceImpl) ListAssignees(ctx context.Context, tenantID string) ([]string, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("tenantId is required")
	}

	seen := map[string]struct{}{}
	recorded, err := s.assignees.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, a := range recorded {
		if a.Email != "" {
			seen[strings.ToLower(a.Email)] = struct{}{}
		}
	}

	tasks, err := s.tasks.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.Assignee != "" {
			seen[strings.ToLower(t.Assignee)] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
