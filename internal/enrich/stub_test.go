package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/zuno-lead-enrichment/internal/lead"
)

func TestStub(t *testing.T) {
	ctx := context.Background()

	r, err := Stub{}.Enrich(ctx, lead.Lead{ID: "1", ContactName: "Ann", Address: "1 Main St"}, Deep)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, Classify(r))
	assert.Equal(t, "Medium", *r.BestContact.Confidence)

	r, err = Stub{}.Enrich(ctx, lead.Lead{ID: "2", Address: "2 NoMatch Rd"}, Standard)
	require.NoError(t, err)
	assert.Equal(t, StatusNoMatch, Classify(r))

	_, err = Stub{}.Enrich(ctx, lead.Lead{ID: "3", Address: "3 Error Ave"}, Standard)
	assert.EqualError(t, err, "forced error")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Stub{}.Enrich(cancelled, lead.Lead{ID: "4", Address: "4 Main St"}, Standard)
	assert.ErrorIs(t, err, context.Canceled)
}
