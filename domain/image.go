package domain

import (
	"bytes"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"
)

// jpegQuality is the encoder quality used for stored images.
const jpegQuality = 90

// NormalizeJPEG decodes the given image bytes (JPEG, PNG, or GIF) and
// re-encodes them as JPEG, so every stored blob has a uniform format.
// It fails with CodeInvalidImage if the bytes are not a decodable image.
func NormalizeJPEG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, NewError(CodeInvalidImage, "empty image data")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, WrapError(CodeInvalidImage, "invalid image", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, WrapError(CodeInvalidImage, "failed to encode image", err)
	}
	return buf.Bytes(), nil
}
