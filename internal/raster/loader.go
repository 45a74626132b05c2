package raster

import (
	"context"
	"errors"
	"fmt"
)

// Band names understood by every source in this module.
const (
	BandRed = "red"
	BandNIR = "nir"
)

// Source yields a named band as a float grid. Implementations are read-only.
type Source interface {
	ReadBand(ctx context.Context, name string) (*Grid, error)
}

// Bands is a validated red/NIR pair sharing one pixel space.
type Bands struct {
	Red *Grid
	NIR *Grid
}

// Metadata returns the spatial metadata shared by both bands.
func (b Bands) Metadata() Metadata {
	return b.Red.Metadata()
}

// LoadBands reads the red and NIR bands from src and checks that they can be
// combined. Read failures are wrapped in ErrSourceRead unless the source
// already reported a precondition failure.
func LoadBands(ctx context.Context, src Source, red, nir string) (Bands, error) {
	redGrid, err := readBand(ctx, src, red)
	if err != nil {
		return Bands{}, err
	}
	nirGrid, err := readBand(ctx, src, nir)
	if err != nil {
		return Bands{}, err
	}

	if err := CheckPair(redGrid, nirGrid); err != nil {
		return Bands{}, err
	}
	return Bands{Red: redGrid, NIR: nirGrid}, nil
}

func readBand(ctx context.Context, src Source, name string) (*Grid, error) {
	grid, err := src.ReadBand(ctx, name)
	if err != nil {
		if errors.Is(err, ErrSourceRead) || errors.Is(err, ErrPrecondition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: band %q: %w", ErrSourceRead, name, err)
	}
	if grid == nil {
		return nil, fmt.Errorf("%w: band %q: source returned no grid", ErrSourceRead, name)
	}
	return grid, nil
}

// MemorySource serves pre-built grids by name.
type MemorySource map[string]*Grid

func (m MemorySource) ReadBand(_ context.Context, name string) (*Grid, error) {
	g, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: band %q not found", ErrSourceRead, name)
	}
	return g, nil
}
