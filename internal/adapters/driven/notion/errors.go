package notion

import (
	"errors"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/custodia-labs/atlas/internal/core/domain"
)

// mapError translates a Notion API failure into the domain's source
// errors. Rate limits and server-side failures are transient; auth and
// missing objects are fatal for the current snapshot.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *notionapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	switch apiErr.Code {
	case "rate_limited":
		return fmt.Errorf("%w: %s", domain.ErrSourceRateLimited, apiErr.Message)
	case "object_not_found":
		return fmt.Errorf("%w: %s", domain.ErrSourceNotFound, apiErr.Message)
	case "unauthorized", "restricted_resource":
		return fmt.Errorf("%w: %s", domain.ErrSourceAuth, apiErr.Message)
	}
	if apiErr.Status >= 500 {
		return fmt.Errorf("%w: %s", domain.ErrSourceUnavailable, apiErr.Message)
	}
	return fmt.Errorf("notion: %s: %s", apiErr.Code, apiErr.Message)
}

// transient reports whether a mapped error is worth retrying.
func transient(err error) bool {
	return errors.Is(err, domain.ErrSourceRateLimited) ||
		errors.Is(err, domain.ErrSourceUnavailable)
}
