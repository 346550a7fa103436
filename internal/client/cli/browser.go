package cli

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/fieldkeeper/internal/client/models"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/store"
)

// listing is a table read rendered for display.
type listing struct {
	Lines   []string
	Stale   bool
	SyncErr error
}

// browser gives the REPL untyped access to a typed store table.
type browser interface {
	Name() string
	list(ctx context.Context) (listing, error)
	show(ctx context.Context, id string) (string, error)
	clear(ctx context.Context) (int64, error)
}

type tableBrowser[T any, P models.Entity[T]] struct {
	t *store.Table[T, P]
}

func newBrowser[T any, P models.Entity[T]](t *store.Table[T, P]) browser {
	return tableBrowser[T, P]{t: t}
}

func (b tableBrowser[T, P]) Name() string { return b.t.Name() }

func (b tableBrowser[T, P]) list(ctx context.Context) (listing, error) {
	lv := b.t.List(ctx)
	if lv.Err != nil {
		return listing{}, lv.Err
	}
	out := listing{Stale: lv.Stale, SyncErr: lv.SyncErr}
	for i := range lv.Items {
		m := P(&lv.Items[i]).GetMeta()
		data, err := json.Marshal(&lv.Items[i])
		if err != nil {
			return listing{}, err
		}
		out.Lines = append(out.Lines, m.ID+" ["+string(m.SyncStatus)+"] "+string(data))
	}
	return out, nil
}

func (b tableBrowser[T, P]) show(ctx context.Context, id string) (string, error) {
	v := b.t.Get(ctx, id)
	if v.Err != nil {
		return "", v.Err
	}
	data, err := json.MarshalIndent(v.Value, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (b tableBrowser[T, P]) clear(ctx context.Context) (int64, error) {
	return b.t.Clear(ctx)
}
