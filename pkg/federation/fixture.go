package federation

import (
	"bytes"
	"context"
	_ "embed"

	"github.com/trackmeet/core/pkg/models"
)

//go:embed fixtures/roster.csv
var fixtureRoster []byte

// FixtureSource serves the embedded roster instead of calling the federation.
// It is used when FEDERATION_FIXTURE_MODE is enabled.
type FixtureSource struct{}

func NewFixtureSource() *FixtureSource {
	return &FixtureSource{}
}

func (FixtureSource) FetchRoster(ctx context.Context) ([]models.ExternalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ParseRoster(bytes.NewReader(fixtureRoster))
}
