package upload

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"github.com/FACorreiaa/go-posts-api/internal/types"
)

const Extension = ".webp"

// MaxPixels bounds width*height of an accepted upload; decoding allocates per pixel,
// so the compressed size alone does not bound memory.
const MaxPixels = 0x3FFF * 0x3FFF

// Processor turns an uploaded image into a resized lossy WebP.
type Processor struct {
	width   int
	quality int
}

func NewProcessor(width, quality int) *Processor {
	return &Processor{width: width, quality: quality}
}

// Process decodes r (jpeg, png, gif or webp, EXIF orientation applied), resizes it
// to the configured width keeping the aspect ratio, and encodes it as WebP.
// Images above MaxPixels are rejected from their header, before any pixel is decoded.
func (p *Processor) Process(r io.Reader) ([]byte, error) {
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnsupportedImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds the pixel limit", types.ErrUnsupportedImage, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(io.MultiReader(&header, r), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnsupportedImage, err)
	}

	resized := imaging.Resize(img, p.width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, resized, &webp.Options{Quality: float32(p.quality)}); err != nil {
		return nil, fmt.Errorf("encoding webp: %w", err)
	}
	return buf.Bytes(), nil
}

// NewFilename returns a fresh "<uuid>.webp" name.
func NewFilename() string {
	return uuid.NewString() + Extension
}

// ValidFilename reports whether name has the shape NewFilename produces, which
// also rules out path separators and traversal.
func ValidFilename(name string) bool {
	base, ok := strings.CutSuffix(name, Extension)
	if !ok {
		return false
	}
	id, err := uuid.Parse(base)
	return err == nil && id.String() == base
}
