package survey

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/fieldkeeper/internal/client/cache"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/client"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/models"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/repositories/rows"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/store"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offline never reaches a server.
type offline struct{ calls int }

func (o *offline) Sync(context.Context, string, string) (syncer.Result, error) {
	o.calls++
	return syncer.Result{}, nil
}

func (o *offline) Status(string, string) syncer.Status { return syncer.Status{} }

func (o *offline) ClearWatermark(context.Context, string, string) error { return nil }

func TestRegistry_WithStoreTables(t *testing.T) {
	ctx := context.Background()
	db, err := client.InitDatabase(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := cache.New(rows.NewSQLiteRepository(db), nil)
	sy := &offline{}
	s := store.New(c, sy)
	s.SetTenant("tenant-1")

	surveys := store.NewTable[Survey](s, SurveysTable, store.RequireTenant())
	elements := store.NewTable[Element](s, ElementsTable, store.RequireTenant())

	_, err = surveys.Create(ctx, &Survey{
		Meta:     models.Meta{ID: "sv1"},
		Title:    "12 High St",
		Sections: []SurveySection{{SectionID: "sec-ext", Name: "External"}},
	})
	require.NoError(t, err)

	reg := NewRegistry(surveys, elements)
	_, inst, err := reg.AddLocalComponent(ctx, "sv1", ElementRef{ElementID: "el1", SectionID: "sec-ext"}, "Lintel")
	require.NoError(t, err)

	v := surveys.Get(ctx, "sv1")
	require.NoError(t, v.Err)
	comp := v.Value.Component(inst.ID)
	require.NotNil(t, comp)
	assert.Equal(t, "Lintel", comp.Name)
	assert.Equal(t, models.StatusQueued, v.Value.SyncStatus)

	// provisional items live only inside the survey document
	components, err := c.List(ctx, ComponentsTable, "tenant-1")
	require.NoError(t, err)
	assert.Empty(t, components)
	pending, err := c.Pending(ctx, SurveysTable, "tenant-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "sv1", pending[0].ID)

	assert.Zero(t, sy.calls, "element lookup uses Peek and never hydrates")
}
