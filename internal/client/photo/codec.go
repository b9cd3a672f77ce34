// Package photo implements the photo codec: content fingerprints for
// de-duplication and JPEG re-encoding with a bounded longest side.
package photo

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	// Decoders for the formats cameras and browsers hand us.
	_ "image/gif"
	_ "image/png"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/dmitrijs2005/marinelog/internal/client/models"
)

// FingerprintPrefix is how many leading bytes of inline content are hashed.
const FingerprintPrefix = 64 << 10

const (
	DefaultMaxDimension = 800
	DefaultQuality      = 70
)

// ContentType of every compressed photo.
const ContentType = "image/jpeg"

// ErrDecode is returned when content cannot be decoded as an image.
var ErrDecode = errors.New("photo: cannot decode image")

// Fingerprint identifies a photo for de-duplication. Inline content is
// hashed over its first FingerprintPrefix bytes plus its length, so the cost
// is bounded. Collisions are possible and accepted. A remote reference uses
// the content fingerprint recorded at upload, falling back to its URL.
func Fingerprint(p models.PhotoRef) uint64 {
	if p.FP != 0 {
		return p.FP
	}
	d := xxhash.New()
	if p.Remote() {
		_, _ = d.WriteString("url:")
		_, _ = d.WriteString(p.URL)
		return d.Sum64()
	}

	prefix := p.Data
	if len(prefix) > FingerprintPrefix {
		prefix = prefix[:FingerprintPrefix]
	}
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(p.Data)))
	_, _ = d.WriteString("data:")
	_, _ = d.Write(n[:])
	_, _ = d.Write(prefix)
	return d.Sum64()
}

// Dedupe drops every photo whose fingerprint matches an earlier one and
// keeps first-seen order. Empty references are dropped too.
func Dedupe(photos []models.PhotoRef) []models.PhotoRef {
	seen := make(map[uint64]struct{}, len(photos))
	out := make([]models.PhotoRef, 0, len(photos))
	for _, p := range photos {
		if p.Empty() {
			continue
		}
		fp := Fingerprint(p)
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Contains reports whether list already holds a photo equal to p under
// fingerprint equality.
func Contains(list []models.PhotoRef, p models.PhotoRef) bool {
	fp := Fingerprint(p)
	for _, q := range list {
		if Fingerprint(q) == fp {
			return true
		}
	}
	return false
}

// Uploaded returns the remote reference for p once its content is stored at
// url, keeping p's content fingerprint.
func Uploaded(p models.PhotoRef, url string) models.PhotoRef {
	return models.PhotoRef{URL: url, FP: Fingerprint(p)}
}

// CarryFingerprints returns a copy of dst where every remote reference
// without a fingerprint takes the one recorded for the same URL in src.
func CarryFingerprints(dst, src []models.PhotoRef) []models.PhotoRef {
	byURL := make(map[string]uint64, len(src))
	for _, p := range src {
		if p.Remote() && p.FP != 0 {
			byURL[p.URL] = p.FP
		}
	}
	out := make([]models.PhotoRef, len(dst))
	copy(out, dst)
	for i, p := range out {
		if fp, ok := byURL[p.URL]; ok && p.Remote() && p.FP == 0 {
			out[i].FP = fp
		}
	}
	return out
}

// Codec re-encodes inline photos before they are stored or uploaded.
type Codec struct {
	MaxDimension int
	Quality      int
}

// NewCodec returns a Codec, substituting defaults for non-positive values.
func NewCodec(maxDimension, quality int) *Codec {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Codec{MaxDimension: maxDimension, Quality: quality}
}

// Compress scales p so its longer side is at most MaxDimension, keeping the
// aspect ratio, and re-encodes it as JPEG. Remote references are returned
// unchanged. Undecodable content yields ErrDecode.
func (c *Codec) Compress(p models.PhotoRef) (models.PhotoRef, error) {
	if p.Remote() {
		return p, nil
	}
	if len(p.Data) == 0 {
		return models.PhotoRef{}, fmt.Errorf("%w: empty content", ErrDecode)
	}

	src, _, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return models.PhotoRef{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	w, h := FitWithin(src.Bounds().Dx(), src.Bounds().Dy(), c.MaxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: c.Quality}); err != nil {
		return models.PhotoRef{}, fmt.Errorf("photo: encode: %w", err)
	}
	return models.PhotoRef{Data: buf.Bytes()}, nil
}

// FitWithin returns w x h scaled down so the longer side is at most limit.
// Smaller images are returned as-is.
func FitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(h*limit/w, 1)
	}
	return max(w*limit/h, 1), limit
}
