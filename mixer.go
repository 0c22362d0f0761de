package anyrul

import "github.com/unixpickle/anydiff"

// ConcatRows joins batches row by row.
//
// Each part packs batch equally-sized rows; the result
// packs batch rows as well, where row i is the
// concatenation of row i of every part, in order.
func ConcatRows(batch int, parts ...anydiff.Res) anydiff.Res {
	return poolAll(parts, nil, func(pooled []anydiff.Res) anydiff.Res {
		var pieces []anydiff.Res
		for i := 0; i < batch; i++ {
			for _, p := range pooled {
				size := p.Output().Len() / batch
				pieces = append(pieces, anydiff.Slice(p, i*size, (i+1)*size))
			}
		}
		return anydiff.Concat(pieces...)
	})
}

func poolAll(rest, pooled []anydiff.Res, f func([]anydiff.Res) anydiff.Res) anydiff.Res {
	if len(rest) == 0 {
		return f(pooled)
	}
	return anydiff.Pool(rest[0], func(r anydiff.Res) anydiff.Res {
		next := append(append([]anydiff.Res{}, pooled...), r)
		return poolAll(rest[1:], next, f)
	})
}
