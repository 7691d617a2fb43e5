package source

import (
	"context"
	"errors"
	"strings"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/catalog"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/survey"
)

// ErrNoIdentity means no analyst is configured for this process.
var ErrNoIdentity = errors.New("no analyst identity configured")

// CatalogStandards serves standards from a loaded catalog.
type CatalogStandards struct {
	Catalog *catalog.Catalog
}

// FetchStandard returns a copy of the standard, or catalog.ErrNotFound.
func (s CatalogStandards) FetchStandard(_ context.Context, standardID string) (catalog.Standard, error) {
	return s.Catalog.Standard(standardID)
}

// StaticIdentity always answers with the same configured user.
type StaticIdentity struct {
	User survey.User
}

func (s StaticIdentity) CurrentUser(context.Context) (survey.User, error) {
	if strings.TrimSpace(s.User.ID) == "" {
		return survey.User{}, ErrNoIdentity
	}
	return s.User, nil
}
