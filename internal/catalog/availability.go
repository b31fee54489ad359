package catalog

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Propagator menghitung ulang computed_available plate dari stok
// ingredient. Idempotent: cuma menulis baris yg nilainya berubah.
type Propagator struct {
	Repo *Repo
}

// Flip: hasil propagasi yg benar-benar mengubah state.
type Flip struct {
	PlateID   string
	Available bool
}

// RecomputePlate menghitung ulang satu plate. Return (flip, changed, err);
// changed=false artinya nilai lama sudah benar dan tidak ada write.
func (p *Propagator) RecomputePlate(ctx context.Context, plateID string) (Flip, bool, error) {
	edges, err := p.Repo.PlateEdges(ctx, plateID)
	if err != nil {
		return Flip{}, false, err
	}

	states, err := p.ingredientStates(ctx, edges)
	if err != nil {
		return Flip{}, false, err
	}
	avail := ComputeAvailable(edges, states)

	// tulis hanya kalau berubah (hindari write amplification + audit noise)
	ct, err := p.Repo.DB.Exec(ctx, `
		UPDATE plates SET computed_available=$2, updated_at=now()
		WHERE id=$1 AND computed_available <> $2`, plateID, avail)
	if err != nil {
		return Flip{}, false, err
	}
	if ct.RowsAffected() == 0 {
		return Flip{}, false, nil
	}
	return Flip{PlateID: plateID, Available: avail}, true, nil
}

// RecomputeForIngredients: jalur utama setelah mutasi stok — cuma plate
// yg resepnya menyentuh ingredient terdampak yg dihitung ulang.
func (p *Propagator) RecomputeForIngredients(ctx context.Context, ingredientIDs []string) ([]Flip, error) {
	seen := map[string]bool{}
	var plateIDs []string
	for _, ingID := range ingredientIDs {
		ids, err := p.Repo.PlatesUsingIngredient(ctx, ingID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				plateIDs = append(plateIDs, id)
			}
		}
	}
	return p.recomputeSet(ctx, plateIDs)
}

// RecomputeAll: full sweep, dipakai saat start propagator atau on demand.
func (p *Propagator) RecomputeAll(ctx context.Context) ([]Flip, error) {
	rows, err := p.Repo.DB.Query(ctx, `SELECT id FROM plates`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plateIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		plateIDs = append(plateIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return p.recomputeSet(ctx, plateIDs)
}

func (p *Propagator) recomputeSet(ctx context.Context, plateIDs []string) ([]Flip, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	results := make([]Flip, len(plateIDs))
	changed := make([]bool, len(plateIDs))
	for i, id := range plateIDs {
		i, id := i, id
		g.Go(func() error {
			f, ok, err := p.RecomputePlate(gctx, id)
			if err != nil {
				return err
			}
			results[i], changed[i] = f, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var flips []Flip
	for i, ok := range changed {
		if ok {
			flips = append(flips, results[i])
		}
	}
	return flips, nil
}

func (p *Propagator) ingredientStates(ctx context.Context, edges []RecipeEdge) (map[string]IngredientState, error) {
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.IngredientID)
	}
	states := make(map[string]IngredientState, len(ids))
	if len(ids) == 0 {
		return states, nil
	}
	ings, err := p.Repo.GetIngredients(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, ing := range ings {
		states[ing.ID] = IngredientState{Stock: ing.Stock, Available: ing.Available, Found: true}
	}
	return states, nil
}
