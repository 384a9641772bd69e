package parser

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"golang.org/x/image/draw"
)

// pointsPerInch converts a render scale into pdftoppm's resolution.
const pointsPerInch = 72.0

// Rasterizer renders single PDF pages to PNG with poppler's pdftoppm.
type Rasterizer struct {
	Command string // pdftoppm binary (default: "pdftoppm")
	MaxDim  int    // Longest raster side in pixels; larger rasters are downscaled. 0 disables.
	Log     *slog.Logger
}

// NewRasterizer creates a rasterizer with the given binary and size cap.
func NewRasterizer(command string, maxDim int, log *slog.Logger) *Rasterizer {
	if command == "" {
		command = "pdftoppm"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Rasterizer{Command: command, MaxDim: maxDim, Log: log}
}

// Render rasterizes one 1-based page of the PDF at path, magnified by scale.
func (r *Rasterizer) Render(ctx context.Context, path string, page int, scale float64) ([]byte, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("invalid render scale %v", scale)
	}

	dir, err := os.MkdirTemp("", "pdfsearch-raster-*")
	if err != nil {
		return nil, fmt.Errorf("create raster dir: %w", err)
	}
	defer os.RemoveAll(dir)

	root := filepath.Join(dir, "page")
	n := strconv.Itoa(page)
	dpi := strconv.Itoa(int(math.Round(scale * pointsPerInch)))

	cmd := exec.CommandContext(ctx, r.command(), "-f", n, "-l", n, "-r", dpi, "-png", "-singlefile", path, root)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w: %s", page, err, bytes.TrimSpace(stderr.Bytes()))
	}

	data, err := os.ReadFile(root + ".png")
	if err != nil {
		return nil, fmt.Errorf("read raster: %w", err)
	}
	return r.limit(data)
}

func (r *Rasterizer) command() string {
	if r.Command == "" {
		return "pdftoppm"
	}
	return r.Command
}

// limit downscales a PNG whose longest side exceeds MaxDim.
func (r *Rasterizer) limit(data []byte) ([]byte, error) {
	if r.MaxDim <= 0 {
		return data, nil
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode raster header: %w", err)
	}
	longest := max(cfg.Width, cfg.Height)
	if longest <= r.MaxDim {
		return data, nil
	}

	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode raster: %w", err)
	}
	ratio := float64(r.MaxDim) / float64(longest)
	w := max(1, int(math.Round(float64(cfg.Width)*ratio)))
	h := max(1, int(math.Round(float64(cfg.Height)*ratio)))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode raster: %w", err)
	}
	if r.Log != nil {
		r.Log.Warn("raster downscaled", "from_w", cfg.Width, "from_h", cfg.Height, "to_w", w, "to_h", h)
	}
	return buf.Bytes(), nil
}
