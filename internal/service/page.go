package service

import (
	"math"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/apperr"
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// Paged carries the page actually served, after defaults and limits were applied.
type Paged[T any] struct {
	Page    Page
	Count   int64
	Results []T
}

// maxOffset bounds how deep a page may reach, keeping offsets and page links clear of int
// overflow.
const maxOffset = math.MaxInt32

func (p Page) normalize(defaultSize, maxSize int) Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = defaultSize
	}
	if p.Size > maxSize {
		p.Size = maxSize
	}
	if last := maxOffset/p.Size + 1; p.Number > last {
		p.Number = last
	}
	return p
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(format, args...)
	}
	return err
}

// uniqueIDs drops repeated ids keeping the first occurrence.
func uniqueIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// missingIDs returns the ids for which model has no row.
func missingIDs(tx *gorm.DB, model interface{}, ids []uint64) ([]uint64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []uint64
	if err := tx.Model(model).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, errors.Wrap(err, "pluck ids")
	}
	present := make(map[uint64]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var missing []uint64
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
