package mapping

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"stmap/internal/bootstrap/logging"
	domainmapping "stmap/internal/domain/mapping"
)

// Add normalizes and validates fields, then appends a new mapping and persists the list.
func (s *Service) Add(ctx context.Context, fields domainmapping.Fields) (domainmapping.Mapping, error) {
	release, err := s.begin(ctx)
	if err != nil {
		return domainmapping.Mapping{}, err
	}
	defer release()

	normalized := fields.Normalize()
	if err := normalized.Validate(); err != nil {
		return domainmapping.Mapping{}, err
	}

	var created domainmapping.Mapping
	err = s.mutateLocked(ctx, func(current []domainmapping.Mapping) ([]domainmapping.Mapping, error) {
		created = newMapping(s.newID(), normalized, s.timestamp())

		next := make([]domainmapping.Mapping, 0, len(current)+1)
		next = append(next, current...)
		return append(next, created), nil
	})
	if err != nil {
		return domainmapping.Mapping{}, err
	}

	logging.Info(
		logging.WithComponent(ctx, "usecase.mapping"),
		"mapping added",
		slog.String("id", created.ID),
		slog.String("target", created.TargetTable+"."+created.TargetField),
		slog.String("source", created.SourceTable+"."+created.SourceField),
	)
	return created.Clone(), nil
}

// Edit overwrites every mutable field of the mapping with the given id.
func (s *Service) Edit(ctx context.Context, id string, fields domainmapping.Fields) (domainmapping.Mapping, error) {
	release, err := s.begin(ctx)
	if err != nil {
		return domainmapping.Mapping{}, err
	}
	defer release()

	id = strings.TrimSpace(id)
	if s.indexOfLocked(id) < 0 {
		return domainmapping.Mapping{}, &domainmapping.NotFoundError{ID: id}
	}

	normalized := fields.Normalize()
	if err := normalized.Validate(); err != nil {
		return domainmapping.Mapping{}, err
	}

	var edited domainmapping.Mapping
	err = s.mutateLocked(ctx, func(current []domainmapping.Mapping) ([]domainmapping.Mapping, error) {
		idx := indexOf(current, id)
		if idx < 0 {
			return nil, &domainmapping.NotFoundError{ID: id}
		}

		updatedAt := s.timestamp()
		edited = current[idx].Clone()
		edited.TargetTable = normalized.TargetTable
		edited.TargetField = normalized.TargetField
		edited.SourceTable = normalized.SourceTable
		edited.SourceField = normalized.SourceField
		edited.Transformation = normalized.Transformation
		edited.Notes = normalized.Notes
		edited.UpdatedAt = &updatedAt

		next := make([]domainmapping.Mapping, len(current))
		copy(next, current)
		next[idx] = edited
		return next, nil
	})
	if err != nil {
		return domainmapping.Mapping{}, err
	}

	logging.Info(logging.WithComponent(ctx, "usecase.mapping"), "mapping edited", slog.String("id", id))
	return edited.Clone(), nil
}

// Delete removes the mapping with the given id. An unknown id is a NotFoundError and
// leaves the list untouched.
func (s *Service) Delete(ctx context.Context, id string) error {
	release, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer release()

	id = strings.TrimSpace(id)
	err = s.mutateLocked(ctx, func(current []domainmapping.Mapping) ([]domainmapping.Mapping, error) {
		idx := indexOf(current, id)
		if idx < 0 {
			return nil, &domainmapping.NotFoundError{ID: id}
		}

		next := make([]domainmapping.Mapping, 0, len(current)-1)
		next = append(next, current[:idx]...)
		return append(next, current[idx+1:]...), nil
	})
	if err != nil {
		return err
	}

	logging.Info(logging.WithComponent(ctx, "usecase.mapping"), "mapping deleted", slog.String("id", id))
	return nil
}

func newMapping(id string, fields domainmapping.Fields, createdAt time.Time) domainmapping.Mapping {
	return domainmapping.Mapping{
		ID:             id,
		TargetTable:    fields.TargetTable,
		TargetField:    fields.TargetField,
		SourceTable:    fields.SourceTable,
		SourceField:    fields.SourceField,
		Transformation: fields.Transformation,
		Notes:          fields.Notes,
		CreatedAt:      createdAt,
	}
}
