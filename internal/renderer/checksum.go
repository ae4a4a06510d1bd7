package renderer

import (
	"crypto/md5"
	"fmt"
	"image"
)

// Checksum returns a hex MD5 of the frame pixels, for pixel-identity checks.
func Checksum(img *image.RGBA) string {
	if img == nil || len(img.Pix) == 0 {
		return "empty"
	}
	hash := md5.New()
	hash.Write(img.Pix)
	return fmt.Sprintf("%x", hash.Sum(nil))
}
