package system

import (
	"image"
	"image/png"
	"sync"
)

// ImagePool keeps one sync.Pool of RGBA canvases per frame rectangle.
type ImagePool struct {
	pools map[image.Rectangle]*sync.Pool
	mu    sync.RWMutex
}

var globalPool = NewImagePool()

func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Rectangle]*sync.Pool)}
}

// GetImage returns an *image.RGBA covering rect from the shared pool. Its
// pixels are not cleared.
func GetImage(rect image.Rectangle) *image.RGBA {
	return globalPool.Get(rect)
}

// PutImage hands img back to the shared pool.
func PutImage(img *image.RGBA) {
	globalPool.Put(img)
}

// Get returns a canvas covering rect, allocating one when the pool for that
// size is empty.
func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	return p.sized(rect).Get().(*image.RGBA)
}

func (p *ImagePool) sized(rect image.Rectangle) *sync.Pool {
	p.mu.RLock()
	pool, ok := p.pools[rect]
	p.mu.RUnlock()
	if ok {
		return pool
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// another Get may have created it between the two locks
	if pool, ok = p.pools[rect]; !ok {
		pool = &sync.Pool{New: func() interface{} { return image.NewRGBA(rect) }}
		p.pools[rect] = pool
	}
	return pool
}

// Put hands img back. Canvases of a size nothing asked for are dropped.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.RLock()
	pool, ok := p.pools[img.Rect]
	p.mu.RUnlock()
	if ok {
		pool.Put(img)
	}
}

// PNGBufferPool lets concurrent png.Encoders share their scratch buffers.
type PNGBufferPool struct {
	pool sync.Pool
}

func (p *PNGBufferPool) Get() *png.EncoderBuffer {
	b, _ := p.pool.Get().(*png.EncoderBuffer)
	return b
}

func (p *PNGBufferPool) Put(b *png.EncoderBuffer) {
	p.pool.Put(b)
}
