package system

import (
	"image"
	"sync"
)

// ImagePool переиспользует *image.RGBA одинакового размера,
// кадры для анализа зума приходят сериями одного разрешения.
type ImagePool struct {
	pools map[image.Rectangle]*sync.Pool
	mu    sync.Mutex
}

var framePool = &ImagePool{
	pools: make(map[image.Rectangle]*sync.Pool),
}

// GetImage returns a cleared-or-recycled RGBA buffer for rect.
func GetImage(rect image.Rectangle) *image.RGBA {
	return framePool.Get(rect)
}

// PutImage hands a buffer back for reuse.
func PutImage(img *image.RGBA) {
	framePool.Put(img)
}

func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	p.mu.Lock()
	pool, ok := p.pools[rect]
	if !ok {
		pool = &sync.Pool{
			New: func() any { return image.NewRGBA(rect) },
		}
		p.pools[rect] = pool
	}
	p.mu.Unlock()

	return pool.Get().(*image.RGBA)
}

func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.Lock()
	pool, ok := p.pools[img.Rect]
	p.mu.Unlock()

	if ok {
		pool.Put(img)
	}
}
