package system

import (
	"image"
	"sync"
)

// ImagePool hands out reusable RGBA frames grouped by size. Capture renders
// a frame per tick at the configured FPS; recycling them keeps the GC quiet.
type ImagePool struct {
	bySize sync.Map // image.Rectangle -> *sync.Pool
}

// NewImagePool returns an empty pool.
func NewImagePool() *ImagePool {
	return &ImagePool{}
}

// Get returns a frame with bounds rect. Pixels keep whatever the previous
// user drew; callers paint the whole frame.
func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	return p.poolFor(rect).Get().(*image.RGBA)
}

// Put hands img back. Frames of a size that was never requested are dropped.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	if v, ok := p.bySize.Load(img.Rect); ok {
		v.(*sync.Pool).Put(img)
	}
}

func (p *ImagePool) poolFor(rect image.Rectangle) *sync.Pool {
	if v, ok := p.bySize.Load(rect); ok {
		return v.(*sync.Pool)
	}
	// гонка двух Get одного размера безопасна: LoadOrStore оставит один пул
	v, _ := p.bySize.LoadOrStore(rect, &sync.Pool{
		New: func() any { return image.NewRGBA(rect) },
	})
	return v.(*sync.Pool)
}
