package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/image/tiff"

	"github.com/gogpu/postfx"
)

// toImage converts RGBA float pixels to an 8-bit image, clamping to [0, 1].
func toImage(pix []float32, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			i := (y*w + x) * 4
			img.SetNRGBA(x, y, color.NRGBA{
				R: unorm8(pix[i]),
				G: unorm8(pix[i+1]),
				B: unorm8(pix[i+2]),
				A: unorm8(pix[i+3]),
			})
		}
	}
	return img
}

func unorm8(v float32) uint8 {
	return uint8(min(max(v, 0), 1)*255 + 0.5)
}

// save writes img as PNG or, for .tif and .tiff, as deflate-compressed
// TIFF.
func save(path string, img image.Image) error {
	var encode func(io.Writer, image.Image) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		encode = func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		}
	case ".png", "":
		encode = png.Encode
	default:
		return fmt.Errorf("unsupported output format %q", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printStats(w io.Writer, device string, s postfx.Stats, elapsed time.Duration) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Effect", "State", "Live", "Free", "Hits", "Misses", "Memory"})
	for _, e := range s.Effects {
		table.Append([]string{
			e.Name,
			e.State,
			fmt.Sprintf("%d", e.Pool.Live),
			fmt.Sprintf("%d", e.Pool.Free),
			fmt.Sprintf("%d", e.Pool.Hits),
			fmt.Sprintf("%d", e.Pool.Misses),
			fmtBytes(e.Pool.Bytes),
		})
	}
	table.Append([]string{
		"chain",
		"",
		fmt.Sprintf("%d", s.Pool.Live),
		fmt.Sprintf("%d", s.Pool.Free),
		fmt.Sprintf("%d", s.Pool.Hits),
		fmt.Sprintf("%d", s.Pool.Misses),
		fmtBytes(s.Pool.Bytes),
	})
	perFrame := time.Duration(0)
	if s.Frames > 0 {
		perFrame = elapsed / time.Duration(s.Frames)
	}
	table.SetFooter([]string{
		device,
		fmt.Sprintf("%d frames", s.Frames),
		fmt.Sprintf("%d failed", s.Failures),
		"", "", "per frame",
		perFrame.Round(time.Microsecond).String(),
	})
	table.Render()
	fmt.Fprint(w, buf.String())
}

func fmtBytes(n uint64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
