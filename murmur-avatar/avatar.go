// Package murmuravatar renders the default profile picture a user gets
// on sign-up: a deterministic identicon derived from their sub, stored
// alongside the other public assets.
package murmuravatar

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

const (
	gridSize = 5
	cellSize = 50
)

// Generator renders and stores identicon avatars.
type Generator struct {
	api    s3iface.S3API
	bucket string
}

// New creates a generator writing into the given bucket.
func New(api s3iface.S3API, bucket string) *Generator {
	return &Generator{
		api:    api,
		bucket: bucket,
	}
}

// Key returns the object key of a user's avatar.
func Key(sub string) string {
	return fmt.Sprintf("user/%v.png", sub)
}

// Render produces the PNG for the given sub. The same sub always yields
// the same image.
func Render(sub string) ([]byte, error) {
	digest := sha256.Sum256([]byte(sub))

	foreground := color.RGBA{R: digest[0], G: digest[1], B: digest[2], A: 255}
	background := color.RGBA{R: 240, G: 240, B: 240, A: 255}

	img := image.NewRGBA(image.Rect(0, 0, gridSize*cellSize, gridSize*cellSize))

	// Fill the left three columns from the digest bits and mirror them
	// right, the usual identicon symmetry.
	for row := 0; row < gridSize; row++ {
		for col := 0; col <= gridSize/2; col++ {
			bit := row*(gridSize/2+1) + col
			on := digest[3+bit/8]>>(bit%8)&1 == 1

			fill := background
			if on {
				fill = foreground
			}
			paintCell(img, row, col, fill)
			paintCell(img, row, gridSize-1-col, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode avatar for %v: %w", sub, err)
	}
	return buf.Bytes(), nil
}

func paintCell(img *image.RGBA, row, col int, fill color.RGBA) {
	for y := row * cellSize; y < (row+1)*cellSize; y++ {
		for x := col * cellSize; x < (col+1)*cellSize; x++ {
			img.Set(x, y, fill)
		}
	}
}

// Upload renders the avatar for sub and stores it, returning the object
// key.
func (g *Generator) Upload(ctx context.Context, sub string) (string, error) {
	data, err := Render(sub)
	if err != nil {
		return "", err
	}

	key := Key(sub)
	_, err = g.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar for %v: %w", sub, err)
	}
	return key, nil
}
