package risk

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ParseGridFile reads and parses an occupancy grid JSON file
func ParseGridFile(path string) (*OccupancyGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return DecodeGridData(data)
}

// ParseGridJSON parses occupancy grid JSON data and validates it
func ParseGridJSON(data []byte) (*OccupancyGrid, error) {
	var g OccupancyGrid
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// DecodeGridData decodes an occupancy grid from either:
// - Raw JSON
// - Zlib-compressed JSON
func DecodeGridData(data []byte) (*OccupancyGrid, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}

	jsonBytes := data
	if trimmed := bytes.TrimLeft(data, " \t\r\n"); len(trimmed) == 0 || trimmed[0] != '{' {
		inflated, err := inflateZlib(data)
		if err != nil {
			return nil, fmt.Errorf("unknown format: not JSON or zlib-compressed")
		}
		jsonBytes = inflated
	}

	return ParseGridJSON(jsonBytes)
}

// inflateZlib decompresses zlib-compressed data
func inflateZlib(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating zlib reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("decompressing zlib data: %w", err)
	}
	return decompressed, nil
}

// Validate checks that the grid header agrees with its data.
// A zero-sized grid is valid and simply yields no static obstacles.
func (g *OccupancyGrid) Validate() error {
	if g.Info.Width < 0 || g.Info.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrInvalidGrid, g.Info.Width, g.Info.Height)
	}
	if want := g.Info.Width * g.Info.Height; len(g.Data) != want {
		return fmt.Errorf("%w: %d cells for %dx%d", ErrInvalidGrid, len(g.Data), g.Info.Width, g.Info.Height)
	}
	if len(g.Data) > 0 && g.Info.Resolution <= 0 {
		return fmt.Errorf("%w: resolution must be positive, got %v", ErrInvalidGrid, g.Info.Resolution)
	}
	return nil
}

// CellToWorld returns the world position of cell (i,j).
// The origin rotation is not applied.
func (g *OccupancyGrid) CellToWorld(i, j int) Point {
	return Point{
		X: g.Info.Origin.X + float64(i)*g.Info.Resolution,
		Y: g.Info.Origin.Y + float64(j)*g.Info.Resolution,
	}
}

// Cell returns the occupancy value of cell (i,j)
func (g *OccupancyGrid) Cell(i, j int) int8 {
	return g.Data[j*g.Info.Width+i]
}

// GridSummary provides a summary of grid contents
type GridSummary struct {
	Width      int
	Height     int
	Resolution float64
	Occupied   int
	Free       int
	Unknown    int
}

// SummarizeGrid counts the cells of each occupancy class
func SummarizeGrid(g *OccupancyGrid, occupied int8) GridSummary {
	s := GridSummary{
		Width:      g.Info.Width,
		Height:     g.Info.Height,
		Resolution: g.Info.Resolution,
	}
	for _, v := range g.Data {
		switch {
		case v == occupied:
			s.Occupied++
		case v == CellFree:
			s.Free++
		case v < 0:
			s.Unknown++
		}
	}
	return s
}
