package survey

import (
	"context"

	"github.com/orgpulse/orgpulse/pkg/serrors"
)

var (
	ErrNotFound    = serrors.NewError("SURVEY_NOT_FOUND", "survey not found", "")
	ErrNameMissing = serrors.NewError("SURVEY_NAME_MISSING", "survey name is required", "")
)

type Repository interface {
	Create(ctx context.Context, s Survey) (Survey, error)
	GetByID(ctx context.Context, id int64) (Survey, error)
	List(ctx context.Context) ([]Survey, error)
}
