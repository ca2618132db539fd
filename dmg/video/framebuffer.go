package video

import "math/rand"

type GBColor uint32

const (
	FramebufferWidth  = 160
	FramebufferHeight = 144
	FramebufferSize   = FramebufferWidth * FramebufferHeight
)

// The four DMG shades, lightest to darkest, as shipped on the original
// monochrome hardware's LCD.
const (
	Shade0Color GBColor = 0xE0F8D0FF // lightest
	Shade1Color         = 0x88C070FF
	Shade2Color         = 0x346856FF
	Shade3Color         = 0x081820FF // darkest
)

func ByteToColor(value byte) GBColor {
	switch value {
	case 0:
		return Shade0Color
	case 1:
		return Shade1Color
	case 2:
		return Shade2Color
	case 3:
		return Shade3Color
	}

	return 0
}

type FrameBuffer struct {
	width  uint
	height uint
	buffer []uint32
}

func NewFrameBuffer() *FrameBuffer {
	colorSlice := make([]uint32, FramebufferSize)

	return &FrameBuffer{
		width:  FramebufferWidth,
		height: FramebufferHeight,
		buffer: colorSlice,
	}
}

func (fb FrameBuffer) GetPixel(x, y uint) uint32 {
	return fb.buffer[y*fb.width+x]
}

func (fb *FrameBuffer) SetPixel(x, y uint, color GBColor) {
	fb.buffer[y*fb.width+x] = uint32(color)
}

func (fb *FrameBuffer) ToSlice() []uint32 {
	return fb.buffer
}

// Clear resets the framebuffer to a black screen.
func (fb *FrameBuffer) Clear() {
	for i := range fb.buffer {
		fb.buffer[i] = 0
	}
}

func (fb *FrameBuffer) DrawNoise() {
	// placeholder: draws random pixels
	for i := 0; i < len(fb.buffer); i++ {

		var color GBColor
		switch rand.Uint32() % 4 {
		case 0:
			color = Shade0Color
		case 1:
			color = Shade1Color
		case 2:
			color = Shade2Color
		case 3:
			color = Shade3Color
		default:
			color = Shade3Color
		}

		fb.buffer[i] = uint32(color)
	}
}

// ToBinaryData returns the framebuffer as raw binary data for test comparison
func (fb *FrameBuffer) ToBinaryData() []byte {
	data := make([]byte, len(fb.buffer)*4)
	for i, pixel := range fb.buffer {
		// Convert uint32 pixel to 4 bytes (RGBA format)
		data[i*4] = byte(pixel >> 24)   // R
		data[i*4+1] = byte(pixel >> 16) // G
		data[i*4+2] = byte(pixel >> 8)  // B
		data[i*4+3] = byte(pixel)       // A
	}
	return data
}

// ToGrayscale converts the framebuffer to grayscale values for simpler comparison
func (fb *FrameBuffer) ToGrayscale() []byte {
	data := make([]byte, len(fb.buffer))
	for i, pixel := range fb.buffer {
		// Convert Game Boy shade indices to grayscale values (0-3)
		switch GBColor(pixel) {
		case Shade0Color:
			data[i] = 0
		case Shade1Color:
			data[i] = 1
		case Shade2Color:
			data[i] = 2
		case Shade3Color:
			data[i] = 3
		default:
			data[i] = 0
		}
	}
	return data
}
