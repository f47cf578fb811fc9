// Package imaging normalizes object photos before they are stored: the
// format is sniffed, the image is downscaled and centered on a plain square
// background, and the result is re-encoded as JPEG.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// MaxUploadBytes is the largest accepted upload.
const MaxUploadBytes = 10 << 20

// Options controls normalization.
type Options struct {
	// MaxDimension bounds the output width and height.
	MaxDimension int
	// Background fills the canvas behind the object and any transparency.
	Background color.Color
	// Square pads the image to a square canvas.
	Square  bool
	Quality int
}

// DefaultOptions produce a 1024px white square JPEG.
var DefaultOptions = Options{
	MaxDimension: 1024,
	Background:   color.White,
	Square:       true,
	Quality:      85,
}

var decoders = map[string]func(io.Reader) (image.Image, error){
	"image/jpeg": jpeg.Decode,
	"image/png":  png.Decode,
	"image/webp": webp.Decode,
}

// Photo is a normalized image.
type Photo struct {
	Data []byte
	MIME string
}

// Normalize reads an uploaded photo and returns the stored form. The format
// is detected from the bytes, never from client headers.
func Normalize(r io.Reader, opts Options) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("image larger than %d bytes", MaxUploadBytes)
	}

	detected := http.DetectContentType(data)
	decode, ok := decoders[detected]
	if !ok {
		return nil, fmt.Errorf("unsupported image format: %s (JPEG, PNG or WebP accepted)", detected)
	}

	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	canvas := compose(img, opts)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return &Photo{Data: buf.Bytes(), MIME: "image/jpeg"}, nil
}

// compose scales img to fit within MaxDimension and draws it centered over
// the background.
func compose(img image.Image, opts Options) *image.RGBA {
	src := img.Bounds()
	w, h := fit(src.Dx(), src.Dy(), opts.MaxDimension)

	cw, ch := w, h
	if opts.Square {
		cw = max(w, h)
		ch = cw
	}

	canvas := image.NewRGBA(image.Rect(0, 0, cw, ch))
	bg := opts.Background
	if bg == nil {
		bg = color.White
	}
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	x0, y0 := (cw-w)/2, (ch-h)/2
	dst := image.Rect(x0, y0, x0+w, y0+h)
	if w == src.Dx() && h == src.Dy() {
		draw.Draw(canvas, dst, img, src.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(canvas, dst, img, src, draw.Over, nil)
	}
	return canvas
}

// fit returns w and h scaled down, aspect preserved, so neither exceeds
// maxDim. Images already within bounds are left alone.
func fit(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w > h {
		return maxDim, max(1, h*maxDim/w)
	}
	return max(1, w*maxDim/h), maxDim
}
