// Package segment holds helpers for person/background masks: conversion
// from arbitrary images, binarisation, speckle removal and edge feathering.
// A mask is an *image.Gray where 255 is subject and 0 is background.
package segment

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// FromImage converts img to a grayscale mask with bounds starting at 0,0.
func FromImage(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		copy(gray.Pix, g.Pix)
		return gray
	}
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// Resize scales a mask to w x h with bilinear sampling.
func Resize(m *image.Gray, w, h int) *image.Gray {
	if m.Bounds().Dx() == w && m.Bounds().Dy() == h {
		return m
	}
	out := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(out, out.Bounds(), m, m.Bounds(), xdraw.Src, nil)
	return out
}

// Threshold returns a binary copy: values at or above cut become 255.
func Threshold(m *image.Gray, cut uint8) *image.Gray {
	out := image.NewGray(m.Bounds())
	for i, v := range m.Pix {
		if v >= cut {
			out.Pix[i] = 255
		}
	}
	return out
}

// Coverage is the fraction of pixels classified as subject (>= 128).
func Coverage(m *image.Gray) float64 {
	if len(m.Pix) == 0 {
		return 0
	}
	n := 0
	for _, v := range m.Pix {
		if v >= 128 {
			n++
		}
	}
	return float64(n) / float64(len(m.Pix))
}

// Feather dilates the subject region by radius and softens its edge with a
// box blur of the same radius, so background replacement does not clip hair
// and sleeves. radius <= 0 returns the mask unchanged.
func Feather(m *image.Gray, radius int) *image.Gray {
	if radius <= 0 {
		return m
	}
	return blurGray(dilate(m, radius), radius)
}

// dilate is a morphological max over a (2r+1) square window, computed as a
// row pass followed by a column pass.
func dilate(m *image.Gray, radius int) *image.Gray {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	tmp := make([]uint8, w*h)
	out := image.NewGray(b)

	for y := 0; y < h; y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+w]
		for x := 0; x < w; x++ {
			var v uint8
			for k := max(0, x-radius); k <= min(w-1, x+radius); k++ {
				v = max(v, row[k])
			}
			tmp[y*w+x] = v
		}
	}
	for y := 0; y < h; y++ {
		lo, hi := max(0, y-radius), min(h-1, y+radius)
		for x := 0; x < w; x++ {
			var v uint8
			for k := lo; k <= hi; k++ {
				v = max(v, tmp[k*w+x])
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}

// blurGray is a separable box blur with clamped edges.
func blurGray(m *image.Gray, radius int) *image.Gray {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	tmp := make([]uint32, w*h)
	out := image.NewGray(b)
	window := uint32(radius*2 + 1)

	for y := 0; y < h; y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+w]
		for x := 0; x < w; x++ {
			var sum uint32
			for k := -radius; k <= radius; k++ {
				sum += uint32(row[clampInt(x+k, 0, w-1)])
			}
			tmp[y*w+x] = sum
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum uint32
			for k := -radius; k <= radius; k++ {
				sum += tmp[clampInt(y+k, 0, h-1)*w+x]
			}
			out.Pix[y*out.Stride+x] = uint8(sum / (window * window))
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
