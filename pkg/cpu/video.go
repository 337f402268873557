package cpu

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"

	"golang.org/x/image/draw"

	"gochip8/pkg/grid"
)

const (
	ScreenWidth  = 64
	ScreenHeight = 32
)

// Framebuffer is the 64×32 monochrome display, row-major.
type Framebuffer [ScreenHeight][ScreenWidth]bool

func (f *Framebuffer) Clear() {
	*f = Framebuffer{}
}

// Pixel reports whether (x, y) is lit. Coordinates wrap around the screen.
func (f *Framebuffer) Pixel(x, y int) bool {
	return f[grid.Wrap(y, ScreenHeight)][grid.Wrap(x, ScreenWidth)]
}

// Lit counts the pixels currently on.
func (f *Framebuffer) Lit() int {
	n := 0
	for i := 0; i < ScreenWidth*ScreenHeight; i++ {
		x, y := grid.GetGridCoords(i, ScreenWidth)
		if f[y][x] {
			n++
		}
	}
	return n
}

// String renders the frame as rows of '#' and '.'.
func (f *Framebuffer) String() string {
	var sb strings.Builder
	sb.Grow((ScreenWidth + 1) * ScreenHeight)
	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			if f[y][x] {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// drawSprite XORs n sprite rows read from I onto the frame buffer at
// (vx, vy) and reports whether any lit pixel was turned off. The start
// position always wraps; pixels running off an edge wrap or are dropped
// according to c.Wrap.
func (c *CPU) drawSprite(vx, vy, n uint8) (bool, error) {
	start := int(c.I)
	if start+int(n) > MemorySize {
		return false, ErrOutOfBounds
	}

	ox := int(vx) % ScreenWidth
	oy := int(vy) % ScreenHeight
	collision := false
	diffs := make([]Pixel, 0, int(n)*8)

	for row := 0; row < int(n); row++ {
		py := oy + row
		if py >= ScreenHeight {
			if !c.Wrap {
				break
			}
			py %= ScreenHeight
		}

		line := c.Memory[start+row]
		for col := 0; col < 8; col++ {
			if line&(0x80>>col) == 0 {
				continue
			}
			px := ox + col
			if px >= ScreenWidth {
				if !c.Wrap {
					break
				}
				px %= ScreenWidth
			}

			old := c.Frame[py][px]
			if old {
				collision = true
			}
			c.Frame[py][px] = !old
			diffs = append(diffs, Pixel{X: px, Y: py, On: !old})
		}
	}

	if len(diffs) > 0 {
		// VF comes from the CPU's frame buffer; the display's collision
		// report is not used.
		c.display.Present(diffs)
	}
	return collision, nil
}

var (
	pixelOn  = color.RGBA{0xE8, 0xF1, 0xFF, 0xFF}
	pixelOff = color.RGBA{0x10, 0x14, 0x1C, 0xFF}
)

// FrameRGBA decodes the frame buffer into a 64×32 RGBA8888 byte slice.
func (c *CPU) FrameRGBA() []byte {
	pixels := make([]byte, ScreenWidth*ScreenHeight*4)
	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			col := pixelOff
			if c.Frame[y][x] {
				col = pixelOn
			}
			i := grid.Index(x, y, ScreenWidth) * 4
			pixels[i+0] = col.R
			pixels[i+1] = col.G
			pixels[i+2] = col.B
			pixels[i+3] = col.A
		}
	}
	return pixels
}

// FrameImage returns the frame buffer as an *image.RGBA.
func (c *CPU) FrameImage() *image.RGBA {
	return &image.RGBA{
		Pix:    c.FrameRGBA(),
		Stride: ScreenWidth * 4,
		Rect:   image.Rect(0, 0, ScreenWidth, ScreenHeight),
	}
}

// ScaledFrameImage returns the frame scaled up by an integer factor using
// nearest-neighbour sampling so pixels stay sharp.
func (c *CPU) ScaledFrameImage(scale int) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	src := c.FrameImage()
	dst := image.NewRGBA(image.Rect(0, 0, ScreenWidth*scale, ScreenHeight*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// SaveScreenshot encodes the current frame, scaled by scale, as a PNG.
func (c *CPU) SaveScreenshot(filename string, scale int) error {
	img := c.ScaledFrameImage(scale)
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
