package assets

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/command"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Loader decodes image files into RGBA8 pixel data. Decoding is bounded by a weighted
// semaphore so bulk loads do not decode more files at once than the configured concurrency.
type Loader struct {
	dir         string
	concurrency int
	maxSize     int
	sem         *semaphore.Weighted
	log         *zap.Logger
}

var _ command.ImageLoader = &Loader{}

// NewLoader creates a Loader.
//
// Parameters:
//   - options: functional options for the asset directory, concurrency, size cap and logger
//
// Returns:
//   - *Loader: the new loader
func NewLoader(options ...LoaderBuilderOption) *Loader {
	l := &Loader{
		concurrency: 4,
		log:         zap.NewNop(),
	}
	for _, opt := range options {
		opt(l)
	}
	l.sem = semaphore.NewWeighted(int64(l.concurrency))
	return l
}

// resolve joins relative paths onto the asset directory.
func (l *Loader) resolve(path string) string {
	if l.dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.dir, path)
}

// LoadImage decodes one file. It satisfies command.ImageLoader.
func (l *Loader) LoadImage(path string) (common.ImageData, error) {
	return l.load(context.Background(), path)
}

func (l *Loader) load(ctx context.Context, path string) (common.ImageData, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return common.ImageData{}, err
	}
	defer l.sem.Release(1)

	full := l.resolve(path)
	f, err := os.Open(full)
	if err != nil {
		return common.ImageData{}, fmt.Errorf("open image %s: %w", full, err)
	}
	defer f.Close()

	img, err := Decode(f, l.maxSize)
	if err != nil {
		return common.ImageData{}, fmt.Errorf("decode image %s: %w", full, err)
	}
	l.log.Debug("assets: decoded image", zap.String("path", full), zap.Uint32("width", img.Width), zap.Uint32("height", img.Height))
	return img, nil
}

// LoadAll decodes every path concurrently and stops at the first failure.
//
// Parameters:
//   - ctx: cancels outstanding decodes
//   - paths: the files to decode
//
// Returns:
//   - map[string]common.ImageData: decoded images keyed by the path as given
//   - error: the first decode error
func (l *Loader) LoadAll(ctx context.Context, paths []string) (map[string]common.ImageData, error) {
	out := make([]common.ImageData, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			img, err := l.load(ctx, p)
			if err != nil {
				return err
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	res := make(map[string]common.ImageData, len(paths))
	for i, p := range paths {
		res[p] = out[i]
	}
	return res, nil
}

// Decode reads any registered image format (png, jpeg, gif, bmp, tiff, webp) and converts it
// to tightly packed RGBA8. Images larger than maxSize on either side are scaled down to fit,
// keeping their aspect ratio; maxSize <= 0 disables scaling.
func Decode(r io.Reader, maxSize int) (common.ImageData, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return common.ImageData{}, err
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return common.ImageData{}, fmt.Errorf("image is empty")
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if maxSize > 0 && (w > maxSize || h > maxSize) {
		scale := float64(maxSize) / float64(max(w, h))
		dw, dh := max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)
		dst = image.NewRGBA(image.Rect(0, 0, dw, dh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	} else {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	}
	return common.ImageData{
		Pixels: dst.Pix,
		Width:  uint32(dst.Bounds().Dx()),
		Height: uint32(dst.Bounds().Dy()),
	}, nil
}
