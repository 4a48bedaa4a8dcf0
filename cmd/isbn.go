package cmd

import "context"

// ISBNCmd looks up a single identifier
type ISBNCmd struct {
	ISBN string `arg:"" help:"ISBN-10 or ISBN-13"`
}

func (i *ISBNCmd) Run(ctx context.Context, a *app) error {
	candidate, err := a.orch.Lookup(ctx, i.ISBN)
	if err != nil {
		return err
	}
	return a.print(candidate)
}
