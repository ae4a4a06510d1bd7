package segment

import "image"

// Clean zeroes subject components smaller than minArea pixels; segmentation
// models tend to leave speckles on textured backgrounds.
func Clean(img *image.Gray, minArea int) *image.Gray {
	rects, labels := label(img)
	sizes := make([]int, len(rects)+1)
	for _, l := range labels {
		sizes[l]++
	}
	out := image.NewGray(img.Bounds())
	w := img.Bounds().Dx()
	for i, l := range labels {
		if l == 0 || sizes[l] < minArea {
			continue
		}
		x, y := i%w, i/w
		out.Pix[y*out.Stride+x] = img.Pix[y*img.Stride+x]
	}
	return out
}

// label flood-fills every component and returns its bounds plus a per-pixel
// component index (0 is background, components start at 1).
func label(img *image.Gray) ([]image.Rectangle, []int) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	labels := make([]int, w*h)

	var rects []image.Rectangle
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if img.Pix[y*img.Stride+x] > 128 && labels[y*w+x] == 0 {
				rects = append(rects, floodFill(img, labels, len(rects)+1, x, y))
			}
		}
	}
	return rects, labels
}

func floodFill(img *image.Gray, labels []int, id, startX, startY int) image.Rectangle {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	minX, minY := startX, startY
	maxX, maxY := startX, startY

	stack := []image.Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, y := p.X, p.Y
		if x < 0 || x >= w || y < 0 || y >= h {
			continue
		}
		if labels[y*w+x] != 0 || img.Pix[y*img.Stride+x] <= 128 {
			continue
		}
		labels[y*w+x] = id

		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)

		stack = append(stack,
			image.Point{X: x + 1, Y: y},
			image.Point{X: x - 1, Y: y},
			image.Point{X: x, Y: y + 1},
			image.Point{X: x, Y: y - 1},
		)
	}
	return image.Rect(minX+img.Bounds().Min.X, minY+img.Bounds().Min.Y, maxX+1+img.Bounds().Min.X, maxY+1+img.Bounds().Min.Y)
}
