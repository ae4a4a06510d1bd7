package video

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildFFmpegArgs(t *testing.T) {
	opts := Options{Path: "out.mp4", Width: 640, Height: 480, FPS: 25, Encoder: "libx264", Quality: 23}
	args := buildFFmpegArgs(opts)

	assert.Equal(t, "out.mp4", args[len(args)-1])
	assert.Contains(t, args, "640x480")
	assert.Contains(t, args, "-crf")
	assert.Contains(t, args, "23")

	opts.Encoder = "h264_videotoolbox"
	opts.Quality = 75
	assert.Contains(t, buildFFmpegArgs(opts), "7500k")

	opts.Encoder = "h264_nvenc"
	assert.Contains(t, buildFFmpegArgs(opts), "-cq")
}

func TestWriteRawRGBA(t *testing.T) {
	gray := image.NewGray(image.Rect(2, 2, 4, 3))
	gray.SetGray(2, 2, color.Gray{Y: 200})

	var buf bytes.Buffer
	assert.NoError(t, writeRawRGBA(&buf, gray))
	assert.Equal(t, 2*1*4, buf.Len())
	assert.Equal(t, []byte{200, 200, 200, 255}, buf.Bytes()[:4])

	rgba := image.NewRGBA(image.Rect(0, 0, 3, 2))
	buf.Reset()
	assert.NoError(t, writeRawRGBA(&buf, rgba))
	assert.Equal(t, len(rgba.Pix), buf.Len())
}
