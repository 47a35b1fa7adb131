package surface

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// The virtual and terminal devices share a packed 24-bit RGB format, row-major.

// NewCanvas returns an RGBA canvas of size filled with background.
func NewCanvas(size image.Point, background color.Color) draw.Image {
	img := image.NewRGBA(image.Rectangle{Max: size})
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	return img
}

// EncodeRGB packs img into RGB triplets. img must match size exactly.
func EncodeRGB(img image.Image, size image.Point) (NativeImage, error) {
	b := img.Bounds()
	if b.Dx() != size.X || b.Dy() != size.Y {
		return nil, fmt.Errorf("image is %dx%d, device expects %dx%d", b.Dx(), b.Dy(), size.X, size.Y)
	}
	out := make(NativeImage, 0, size.X*size.Y*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			out = append(out, c.R, c.G, c.B)
		}
	}
	return out, nil
}

// DecodeRGB unpacks an image produced by EncodeRGB.
func DecodeRGB(data NativeImage, size image.Point) (*image.RGBA, error) {
	if len(data) != size.X*size.Y*3 {
		return nil, fmt.Errorf("native image has %d bytes, want %d", len(data), size.X*size.Y*3)
	}
	img := image.NewRGBA(image.Rectangle{Max: size})
	for i := 0; i < size.X*size.Y; i++ {
		img.Pix[i*4] = data[i*3]
		img.Pix[i*4+1] = data[i*3+1]
		img.Pix[i*4+2] = data[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img, nil
}
