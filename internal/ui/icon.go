package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

var iconBytes = renderIcon()

// renderIcon draws the tray icon: a 16x16 film strip tile in the
// Aura Clip accent color, with sprocket holes along the edges.
func renderIcon() []byte {
	const size = 16
	accent := color.RGBA{R: 0x7c, G: 0x4d, B: 0xff, A: 0xff}
	hole := color.RGBA{R: 0xf2, G: 0xf2, B: 0xf2, A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, accent)
		}
	}

	for _, y := range []int{1, size - 3} {
		for x := 2; x+1 < size-1; x += 4 {
			img.SetRGBA(x, y, hole)
			img.SetRGBA(x+1, y, hole)
			img.SetRGBA(x, y+1, hole)
			img.SetRGBA(x+1, y+1, hole)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
