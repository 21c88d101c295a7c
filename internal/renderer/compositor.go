// Package renderer composes presentation frames: background, the asset on
// display and the transition in flight. The compositor is the surface a
// capture source records.
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/slideshow/internal/clock"
	"github.com/ivlev/slideshow/internal/effects"
	"github.com/ivlev/slideshow/internal/logging"
	"github.com/ivlev/slideshow/internal/media"
	"github.com/ivlev/slideshow/internal/playback"
	"github.com/ivlev/slideshow/internal/system"
)

// ReferenceWidth is the display width transition vectors are expressed in.
const ReferenceWidth = 1920.0

// DefaultBackgrounds cycle by position.
var DefaultBackgrounds = []string{"#f8a5c2", "#778beb", "#63cdda", "#786fa6", "#cf6a87", "#f19066"}

// AssetOpener gives access to displayable bytes. *media.HandleStore implements it.
type AssetOpener interface {
	Open(h media.Handle) (io.ReadCloser, error)
}

// Options size the output and the animation.
type Options struct {
	Width, Height  int
	TransitionTime time.Duration
	Backgrounds    []string
}

// Compositor renders frames of the active session. Frame is safe to call
// concurrently with OnAdvance.
type Compositor struct {
	width, height  int
	transitionTime time.Duration
	backgrounds    []color.RGBA
	opener         AssetOpener
	pool           *system.ImagePool
	clock          clock.Clock
	logger         *zap.Logger

	mu         sync.Mutex
	session    uuid.UUID
	seq        int
	title      string
	assets     []*media.Asset
	index      int
	previous   int
	transition effects.Transition
	changedAt  time.Time
	cache      map[media.Handle]image.Image
	broken     map[media.Handle]bool
}

// NewCompositor returns a compositor with no session loaded.
func NewCompositor(opts Options, opener AssetOpener, pool *system.ImagePool, c clock.Clock, logger *zap.Logger) (*Compositor, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", opts.Width, opts.Height)
	}
	if len(opts.Backgrounds) == 0 {
		opts.Backgrounds = DefaultBackgrounds
	}
	bgs := make([]color.RGBA, 0, len(opts.Backgrounds))
	for _, hex := range opts.Backgrounds {
		col, err := ParseHexColor(hex)
		if err != nil {
			return nil, err
		}
		bgs = append(bgs, col)
	}
	if pool == nil {
		pool = system.NewImagePool()
	}
	if c == nil {
		c = clock.New()
	}
	return &Compositor{
		width:          opts.Width,
		height:         opts.Height,
		transitionTime: opts.TransitionTime,
		backgrounds:    bgs,
		opener:         opener,
		pool:           pool,
		clock:          c,
		logger:         logging.OrNop(logger),
		previous:       -1,
		cache:          make(map[media.Handle]image.Image),
		broken:         make(map[media.Handle]bool),
	}, nil
}

// Size returns the frame dimensions.
func (c *Compositor) Size() (int, int) { return c.width, c.height }

// Clock returns the time source frames are stamped with.
func (c *Compositor) Clock() clock.Clock { return c.clock }

// Load switches the compositor to snap's session.
func (c *Compositor) Load(snap playback.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = snap.ID
	c.seq = snap.Advances
	c.title = snap.Title
	c.assets = append([]*media.Asset(nil), snap.Assets...)
	c.index = snap.Index
	c.previous = -1
	c.transition = effects.Transition{}
	c.changedAt = time.Time{}
	c.cache = make(map[media.Handle]image.Image)
	c.broken = make(map[media.Handle]bool)
}

// Unload drops the session and its decoded images.
func (c *Compositor) Unload() {
	c.Load(playback.Snapshot{})
}

// OnAdvance is a playback.Listener. Events of other sessions and events
// older than the position already shown are ignored.
func (c *Compositor) OnAdvance(ev playback.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.Session != c.session || len(c.assets) == 0 || ev.Seq <= c.seq {
		return
	}
	c.seq = ev.Seq
	c.previous = ev.Previous
	c.index = ev.Index
	c.transition = ev.Transition
	c.changedAt = ev.At

	for h := range c.cache {
		if h != c.assets[c.index].Handle && h != c.assets[c.previous].Handle {
			delete(c.cache, h)
		}
	}
}

// Frame renders the presentation at instant at. The frame comes from the
// image pool; hand it back with Release once it has been consumed.
func (c *Compositor) Frame(at time.Time) *image.RGBA {
	frame := c.pool.Get(image.Rect(0, 0, c.width, c.height))

	c.mu.Lock()
	defer c.mu.Unlock()

	progress := 1.0
	if c.previous >= 0 && c.transitionTime > 0 && !c.changedAt.IsZero() {
		progress = clamp01(float64(at.Sub(c.changedAt)) / float64(c.transitionTime))
	}

	bg := c.background(c.index)
	if progress < 1 {
		bg = mixColor(c.background(c.previous), bg, easeInOutCubic(progress))
	}
	draw.Draw(frame, frame.Rect, image.NewUniform(bg), image.Point{}, draw.Src)

	if len(c.assets) == 0 {
		return frame
	}

	unit := float64(c.width) / ReferenceWidth
	if progress < 1 && c.previous != c.index {
		c.drawAsset(frame, c.previous, OutgoingPose(c.transition, progress, unit))
	}
	c.drawAsset(frame, c.index, IncomingPose(c.transition, progress, unit))
	c.drawTitle(frame)
	return frame
}

// Release returns a frame obtained from Frame to the pool.
func (c *Compositor) Release(frame *image.RGBA) {
	c.pool.Put(frame)
}

func (c *Compositor) background(index int) color.RGBA {
	if index < 0 {
		index = 0
	}
	return c.backgrounds[index%len(c.backgrounds)]
}

func (c *Compositor) drawAsset(frame *image.RGBA, index int, pose Pose) {
	if index < 0 || index >= len(c.assets) || pose.Opacity <= 0 || pose.Scale <= 0 {
		return
	}
	src, ok := c.fitted(c.assets[index])
	if !ok {
		return
	}

	if pose.Scale != 1 {
		w := int(float64(src.Bounds().Dx()) * pose.Scale)
		if w < 1 {
			w = 1
		}
		src = imaging.Resize(src, w, 0, imaging.Linear)
	}
	if pose.Rotation != 0 {
		src = imaging.Rotate(src, -pose.Rotation, color.Transparent)
	}

	b := src.Bounds()
	cx := c.width/2 + int(pose.X)
	cy := c.height/2 + int(pose.Y)
	dst := image.Rect(cx-b.Dx()/2, cy-b.Dy()/2, cx-b.Dx()/2+b.Dx(), cy-b.Dy()/2+b.Dy())

	alpha := uint8(clamp01(pose.Opacity) * 255)
	draw.DrawMask(frame, dst, src, b.Min, image.NewUniform(color.Alpha{A: alpha}), image.Point{}, draw.Over)
}

// fitted decodes the asset and fits it into the image frame area, 85% of
// the width and 70% of the height.
func (c *Compositor) fitted(a *media.Asset) (image.Image, bool) {
	if img, ok := c.cache[a.Handle]; ok {
		return img, true
	}
	if c.broken[a.Handle] || c.opener == nil {
		return nil, false
	}

	img, err := c.decode(a.Handle)
	if err != nil {
		c.broken[a.Handle] = true
		c.logger.Warn("cannot render asset",
			zap.String(logging.FieldAsset, a.ID.String()),
			zap.String(logging.FieldFile, a.Name),
			zap.Error(err),
		)
		return nil, false
	}
	fit := imaging.Fit(img, c.width*85/100, c.height*70/100, imaging.Lanczos)
	c.cache[a.Handle] = fit
	return fit, true
}

func (c *Compositor) decode(h media.Handle) (image.Image, error) {
	rc, err := c.opener.Open(h)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return imaging.Decode(rc)
}

func (c *Compositor) drawTitle(frame *image.RGBA) {
	if c.title == "" {
		return
	}
	face := basicfont.Face7x13
	width := font.MeasureString(face, c.title).Ceil()
	x := (c.width - width) / 2
	y := c.height / 12

	shadow := &font.Drawer{Dst: frame, Src: image.NewUniform(color.RGBA{A: 160}), Face: face,
		Dot: fixed.P(x+1, y+1)}
	shadow.DrawString(c.title)
	d := &font.Drawer{Dst: frame, Src: image.White, Face: face, Dot: fixed.P(x, y)}
	d.DrawString(c.title)
}

// ParseHexColor parses "#rrggbb" or "#rgb".
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

func mixColor(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(lerp(float64(a.R), float64(b.R), t)),
		G: uint8(lerp(float64(a.G), float64(b.G), t)),
		B: uint8(lerp(float64(a.B), float64(b.B), t)),
		A: 255,
	}
}
