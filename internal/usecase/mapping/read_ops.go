package mapping

import (
	"context"
	"strings"

	domainmapping "stmap/internal/domain/mapping"
)

// List returns every mapping in insertion order. The result is a copy.
func (s *Service) List(ctx context.Context) ([]domainmapping.Mapping, error) {
	release, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.snapshotLocked(nil), nil
}

func (s *Service) Get(ctx context.Context, id string) (domainmapping.Mapping, error) {
	release, err := s.begin(ctx)
	if err != nil {
		return domainmapping.Mapping{}, err
	}
	defer release()

	id = strings.TrimSpace(id)
	idx := s.indexOfLocked(id)
	if idx < 0 {
		return domainmapping.Mapping{}, &domainmapping.NotFoundError{ID: id}
	}
	return s.items[idx].Clone(), nil
}

// Search matches term case-insensitively against all six textual fields.
// A blank term returns the full list.
func (s *Service) Search(ctx context.Context, term string) ([]domainmapping.Mapping, error) {
	release, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.snapshotLocked(func(item domainmapping.Mapping) bool {
		return item.Matches(term)
	}), nil
}

func (s *Service) ByTargetTable(ctx context.Context, table string) ([]domainmapping.Mapping, error) {
	return s.filterByTable(ctx, table, domainmapping.TargetTableOf)
}

func (s *Service) BySourceTable(ctx context.Context, table string) ([]domainmapping.Mapping, error) {
	return s.filterByTable(ctx, table, domainmapping.SourceTableOf)
}

func (s *Service) filterByTable(ctx context.Context, table string, pick func(domainmapping.Mapping) string) ([]domainmapping.Mapping, error) {
	release, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	want := domainmapping.NormalizeIdentifier(table)
	return s.snapshotLocked(func(item domainmapping.Mapping) bool {
		return pick(item) == want
	}), nil
}

// GroupByTarget groups the list by target table, groups sorted alphabetically.
func (s *Service) GroupByTarget(ctx context.Context) ([]domainmapping.Group, error) {
	release, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return domainmapping.GroupByTarget(s.snapshotLocked(nil)), nil
}

func (s *Service) Statistics(ctx context.Context) (domainmapping.Statistics, error) {
	release, err := s.begin(ctx)
	if err != nil {
		return domainmapping.Statistics{}, err
	}
	defer release()

	return domainmapping.Summarize(s.items), nil
}

func (s *Service) TargetTables(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, domainmapping.TargetTableOf)
}

func (s *Service) SourceTables(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, domainmapping.SourceTableOf)
}

func (s *Service) distinct(ctx context.Context, pick func(domainmapping.Mapping) string) ([]string, error) {
	release, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return domainmapping.DistinctTables(s.items, pick), nil
}
