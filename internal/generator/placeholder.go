package generator

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/m3rciful/memearena/internal/meme"
)

const placeholderSize = 512

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
	placeholderErr  error
)

// Placeholder returns the fallback image: a diagonal two-tone PNG rendered once and cached.
func Placeholder() (meme.Image, error) {
	placeholderOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, placeholderSize, placeholderSize))
		bg := color.RGBA{R: 0x22, G: 0x22, B: 0x2e, A: 0xff}
		fg := color.RGBA{R: 0xf5, G: 0xc5, B: 0x18, A: 0xff}
		for y := 0; y < placeholderSize; y++ {
			for x := 0; x < placeholderSize; x++ {
				c := bg
				if (x+y)/32%2 == 0 {
					c = fg
				}
				img.SetRGBA(x, y, c)
			}
		}
		var buf bytes.Buffer
		placeholderErr = png.Encode(&buf, img)
		placeholderPNG = buf.Bytes()
	})
	if placeholderErr != nil {
		return meme.Image{}, placeholderErr
	}
	data := make([]byte, len(placeholderPNG))
	copy(data, placeholderPNG)
	return meme.Image{Data: data, ContentType: "image/png", Fallback: true}, nil
}
