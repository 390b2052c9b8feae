package app

import (
	"context"
	"strings"

	"poi_ingest/internal/domain"
)

// QueryService backs the operator read paths: job status and a lookup to
// check what an import stored.
type QueryService struct {
	repo   domain.POIRepository
	status domain.StatusStore
}

func NewQueryService(r domain.POIRepository, s domain.StatusStore) *QueryService {
	return &QueryService{repo: r, status: s}
}

func (s *QueryService) ImportStatus(ctx context.Context, jobID string) (domain.ImportStatus, error) {
	if s.status == nil {
		return domain.ImportStatus{}, domain.ErrNotFound
	}
	return s.status.Get(ctx, jobID)
}

// LookupPOIs returns every stored record carrying internalID. Duplicates are
// expected: ids are not unique across files or re-imports. Document ids keep
// their whitespace, so the id is matched exactly as given.
func (s *QueryService) LookupPOIs(ctx context.Context, internalID string) ([]domain.POI, error) {
	if strings.TrimSpace(internalID) == "" {
		return nil, domain.ErrNotFound
	}
	out, err := s.repo.FindByInternalID(ctx, internalID)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

func (s *QueryService) CountPOIs(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
