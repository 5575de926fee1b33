// Package seed loads reference data (tags, units and ingredients) into the catalog.
package seed

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/apperr"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/service"
)

type (
	Catalog struct {
		Tags        []Tag        `toml:"tags"`
		Ingredients []Ingredient `toml:"ingredients"`
	}

	Tag struct {
		Name  string `toml:"name"`
		Slug  string `toml:"slug"`
		Color string `toml:"color"`
	}

	Ingredient struct {
		Name            string `toml:"name"`
		MeasurementUnit string `toml:"measurement_unit"`
	}

	Stats struct {
		Created int64
		Skipped int64
	}
)

func Parse(r io.Reader) (*Catalog, error) {
	c := Catalog{}
	if err := toml.NewDecoder(r).Decode(&c); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return &c, nil
}

// Load creates every entry of c. Entries that already exist are skipped, so loading the same
// file twice is harmless.
func Load(ctx context.Context, catalog *service.Catalog, c *Catalog, l *zap.SugaredLogger) (Stats, error) {
	var created, skipped int64
	count := func(err error) error {
		switch {
		case err == nil:
			atomic.AddInt64(&created, 1)
		case apperr.Is(err, apperr.KindConflict):
			atomic.AddInt64(&skipped, 1)
		default:
			return err
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for _, t := range c.Tags {
			_, err := catalog.CreateTag(gctx, t.Name, t.Slug, t.Color)
			if err := count(err); err != nil {
				return errors.Wrapf(err, "tag %q", t.Slug)
			}
		}
		return nil
	})
	g.Go(func() error {
		for _, i := range c.Ingredients {
			_, err := catalog.CreateIngredient(gctx, i.Name, i.MeasurementUnit)
			if err := count(err); err != nil {
				return errors.Wrapf(err, "ingredient %q", i.Name)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats := Stats{Created: created, Skipped: skipped}
	l.Infow("catalog loaded", "created", stats.Created, "skipped", stats.Skipped)
	return stats, nil
}
