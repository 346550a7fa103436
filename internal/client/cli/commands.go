package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/fieldkeeper/internal/common"
	"github.com/dmitrijs2005/fieldkeeper/internal/survey"
	"github.com/dmitrijs2005/fieldkeeper/internal/timex"
)

func usage(format string) error {
	return fmt.Errorf("%w: usage: %s", common.ErrValidation, format)
}

func (a *App) table(name string) (browser, error) {
	b, ok := a.tables[name]
	if !ok {
		names := make([]string, 0, len(a.tables))
		for n := range a.tables {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("%w: unknown table %q (known: %s)", common.ErrValidation, name, strings.Join(names, ", "))
	}
	return b, nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format+"\n", args...)
}

// Tenant prints the active tenant, or switches to args[0]. "-" selects
// personal mode.
func (a *App) Tenant(ctx context.Context, args []string) error {
	if len(args) == 0 {
		if t := a.store.Tenant(); t != "" {
			a.printf("tenant: %s", t)
		} else {
			a.printf("tenant: none (personal mode)")
		}
		return nil
	}
	id := args[0]
	if id == "-" {
		id = ""
	}
	a.store.SetTenant(id)
	return a.Tenant(ctx, nil)
}

func (a *App) Sync(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("sync <table>")
	}
	if _, err := a.table(args[0]); err != nil {
		return err
	}
	res, err := a.coord.Sync(ctx, args[0], a.store.Tenant())
	if err != nil {
		return err
	}
	mode := "delta"
	if res.Initial {
		mode = "initial"
	}
	a.printf("synced %s (%s): fetched=%d applied=%d deleted=%d skipped=%d watermark=%s",
		res.Table, mode, res.Fetched, res.Applied, res.Deleted, res.Skipped, res.Watermark)
	return nil
}

func (a *App) Push(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("push <table>")
	}
	if _, err := a.table(args[0]); err != nil {
		return err
	}
	res, err := a.coord.Push(ctx, args[0], a.store.Tenant())
	if err != nil {
		return err
	}
	a.printf("pushed %s: sent=%d accepted=%d removed=%d", res.Table, res.Sent, res.Accepted, res.Removed)
	return nil
}

func (a *App) List(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("list <table>")
	}
	b, err := a.table(args[0])
	if err != nil {
		return err
	}
	l, err := b.list(ctx)
	if err != nil {
		return err
	}
	if l.Stale {
		a.printf("last sync failed, showing cached data: %v", l.SyncErr)
	}
	if len(l.Lines) == 0 {
		a.printf("no records")
	}
	for _, line := range l.Lines {
		a.printf("%s", line)
	}
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("show <table> <id>")
	}
	b, err := a.table(args[0])
	if err != nil {
		return err
	}
	s, err := b.show(ctx, args[1])
	if err != nil {
		return err
	}
	a.printf("%s", s)
	return nil
}

func (a *App) Clear(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("clear <table>")
	}
	b, err := a.table(args[0])
	if err != nil {
		return err
	}
	n, err := b.clear(ctx)
	if err != nil {
		return err
	}
	a.printf("cleared %d rows from %s, next sync is a full pull", n, args[0])
	return nil
}

// AddDef adds a provisional component type to a survey element and places an
// instance of it.
func (a *App) AddDef(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return usage("adddef <survey> <element> <name...>")
	}
	def, inst, err := a.registry.AddLocalComponent(ctx, args[0], survey.ElementRef{ElementID: args[1]}, strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	a.printf("added component %s (%s) as %s", def.ID, def.Name, inst.ID)
	return nil
}

func (a *App) AddCond(ctx context.Context, args []string) error {
	if len(args) < 4 {
		return usage("addcond <survey> <element> <name> <text...>")
	}
	def, err := a.registry.AddConditionDef(ctx, args[0], survey.ElementRef{ElementID: args[1]}, args[2], strings.Join(args[3:], " "))
	if err != nil {
		return err
	}
	a.printf("added condition %s (%s)", def.ID, def.Name)
	return nil
}

// Phrases lists the condition phrases offered for a component selection on a
// survey: catalog phrases plus the survey's own provisional conditions. The
// selection is taken as given, so any local_ instance id is provisional and
// sees every phrase.
func (a *App) Phrases(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("phrases <survey> <component-id>")
	}
	v := a.surveys.Get(ctx, args[0])
	if v.Err != nil {
		return v.Err
	}
	lv := a.phrases.List(ctx)
	if lv.Err != nil {
		return lv.Err
	}
	all := lv.Items
	for _, d := range v.Value.LocalConditionDefs() {
		all = append(all, d.Phrase())
	}

	got := survey.PhrasesFor(args[1], all)
	if len(got) == 0 {
		a.printf("no phrases")
	}
	for _, p := range got {
		a.printf("%s: %s", p.ID, p.Phrase)
	}
	return nil
}

func (a *App) Status(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("status <table>")
	}
	tenant := a.store.Tenant()
	st := a.coord.Status(args[0], tenant)

	wm, ok, err := a.coord.Watermark(ctx, args[0], tenant)
	if err != nil {
		return err
	}
	if !ok {
		wm = "none"
	}

	a.printf("table: %s", args[0])
	a.printf("watermark: %s", wm)
	if !st.LastAttempt.IsZero() {
		a.printf("last attempt: %s", timex.FormatISO(st.LastAttempt))
	}
	if !st.LastSuccess.IsZero() {
		a.printf("last success: %s", timex.FormatISO(st.LastSuccess))
	}
	if st.Stale() {
		a.printf("last sync failed, showing cached data: %v", st.LastError)
	}
	return nil
}
