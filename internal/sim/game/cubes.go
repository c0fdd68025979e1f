package game

import "fmt"

// maxCubes caps the identifier space so a mistyped config cannot allocate
// an absurd grid.
const maxCubes = 1 << 20

// CubeID derives the deterministic identifier for one grid cell.
func CubeID(x, y, z int) string {
	return fmt.Sprintf("cube-%d-%d-%d", x, y, z)
}

func validateConfig(cfg Config) error {
	if cfg.XDim < 1 || cfg.YDim < 1 || cfg.ZDim < 1 {
		return fmt.Errorf("grid dimensions must be >= 1, got %dx%dx%d", cfg.XDim, cfg.YDim, cfg.ZDim)
	}
	total := cfg.XDim * cfg.YDim * cfg.ZDim
	if total > maxCubes {
		return fmt.Errorf("grid too large: %d cubes (max %d)", total, maxCubes)
	}
	return nil
}

// buildCubes creates a fresh epoch: every valid identifier present.
func buildCubes(cfg Config) map[string]bool {
	cubes := make(map[string]bool, cfg.XDim*cfg.YDim*cfg.ZDim)
	for x := 0; x < cfg.XDim; x++ {
		for y := 0; y < cfg.YDim; y++ {
			for z := 0; z < cfg.ZDim; z++ {
				cubes[CubeID(x, y, z)] = true
			}
		}
	}
	return cubes
}
