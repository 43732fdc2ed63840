// Package imageprep validates uploaded score screenshots and shrinks them until they fit
// the vision service's transport ceiling.
package imageprep

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"math"
	"time"

	"golang.org/x/image/draw"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
)

// RawUpload is the untrusted input as received. It is never mutated.
type RawUpload struct {
	Data      []byte
	MediaType string
	Filename  string
}

// PreparedImage is what gets sent to the vision service.
type PreparedImage struct {
	Data      []byte
	MediaType string
	Resized   bool
	Width     int
	Height    int
	// Attempts counts encodes tried; the last-resort encode counts as one.
	Attempts int
}

// Options calibrates the size ceilings and the shrink schedule. Zero fields take defaults.
type Options struct {
	MaxUploadBytes int
	MaxRawBytes    int
	MaxDimension   int
	MaxAttempts    int

	InitialQuality int
	QualityStep    int
	MinQuality     int
	ShrinkFactor   float64

	FallbackWidth   int
	FallbackHeight  int
	FallbackQuality int
}

// DefaultOptions returns the production schedule: 2048px cap, q85 stepping down by 10
// to 50, 0.75 shrink per failed attempt, eight attempts, then 1280x720 at q70.
func DefaultOptions() Options {
	return Options{
		MaxUploadBytes:  constants.MaxUploadBytes,
		MaxRawBytes:     constants.MaxVisionRawBytes,
		MaxDimension:    2048,
		MaxAttempts:     8,
		InitialQuality:  85,
		QualityStep:     10,
		MinQuality:      50,
		ShrinkFactor:    0.75,
		FallbackWidth:   1280,
		FallbackHeight:  720,
		FallbackQuality: 70,
	}
}

// OptionsFromConfig overlays the configured ceilings on the defaults.
func OptionsFromConfig(c common.UploadConfig) Options {
	return Options{
		MaxUploadBytes: c.MaxUploadBytes,
		MaxRawBytes:    c.MaxRawBytes,
		MaxDimension:   c.MaxDimension,
		MaxAttempts:    c.MaxAttempts,
	}.withDefaults()
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = d.MaxUploadBytes
	}
	if o.MaxRawBytes <= 0 {
		o.MaxRawBytes = d.MaxRawBytes
	}
	if o.MaxDimension <= 0 {
		o.MaxDimension = d.MaxDimension
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.InitialQuality <= 0 {
		o.InitialQuality = d.InitialQuality
	}
	if o.QualityStep <= 0 {
		o.QualityStep = d.QualityStep
	}
	if o.MinQuality <= 0 {
		o.MinQuality = d.MinQuality
	}
	if o.ShrinkFactor <= 0 || o.ShrinkFactor >= 1 {
		o.ShrinkFactor = d.ShrinkFactor
	}
	if o.FallbackWidth <= 0 || o.FallbackHeight <= 0 {
		o.FallbackWidth, o.FallbackHeight = d.FallbackWidth, d.FallbackHeight
	}
	if o.FallbackQuality <= 0 {
		o.FallbackQuality = d.FallbackQuality
	}
	return o
}

// Preconditioner validates uploads and fits them under the transport ceiling.
// It holds no per-call state and is safe for concurrent use.
type Preconditioner struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Preconditioner. A nil logger uses slog.Default().
func New(opts Options, logger *slog.Logger) *Preconditioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preconditioner{opts: opts.withDefaults(), logger: logger}
}

// Validate checks type, extension, size and binary signature without decoding.
func (p *Preconditioner) Validate(u RawUpload) (string, error) {
	return validate(u, p.opts.MaxUploadBytes)
}

// Prepare validates u and returns bytes that fit MaxRawBytes. Uploads already under the
// ceiling pass through unchanged. Larger ones are re-encoded as JPEG on a shrinking
// schedule; if no attempt fits, the last-resort encode is returned regardless of size.
func (p *Preconditioner) Prepare(ctx context.Context, u RawUpload) (PreparedImage, error) {
	mediaType, err := p.Validate(u)
	if err != nil {
		return PreparedImage{}, err
	}

	if len(u.Data) <= p.opts.MaxRawBytes {
		out := PreparedImage{Data: bytes.Clone(u.Data), MediaType: mediaType}
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(u.Data)); err == nil {
			out.Width, out.Height = cfg.Width, cfg.Height
		}
		return out, nil
	}

	start := time.Now()
	src, _, err := image.Decode(bytes.NewReader(u.Data))
	if err != nil {
		return PreparedImage{}, common.NewValidationError("image", u.Filename, "File is not a decodable image.")
	}
	bounds := src.Bounds()

	p.logger.Info("imageprep.resize.start",
		"filename", u.Filename,
		"raw_bytes", len(u.Data),
		"limit_bytes", p.opts.MaxRawBytes,
		"width", bounds.Dx(),
		"height", bounds.Dy())

	boxW, boxH := bounds.Dx(), bounds.Dy()
	quality := p.opts.InitialQuality
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return PreparedImage{}, common.NewKindError(common.CodeTimeout, "image preparation cancelled", err)
		}

		w, h := fitInside(bounds.Dx(), bounds.Dy(), min(boxW, p.opts.MaxDimension), min(boxH, p.opts.MaxDimension))
		data, err := encodeJPEG(src, w, h, quality)
		if err != nil {
			return PreparedImage{}, common.NewKindError(common.CodeInternal, "encode jpeg", err)
		}
		p.logger.Debug("imageprep.resize.attempt",
			"attempt", attempt, "width", w, "height", h, "quality", quality, "bytes", len(data))

		if len(data) <= p.opts.MaxRawBytes {
			p.logger.Info("imageprep.resize.ok",
				"filename", u.Filename,
				"attempt", attempt,
				"bytes", len(data),
				"width", w,
				"height", h,
				"quality", quality,
				"elapsed_ms", time.Since(start).Milliseconds())
			return PreparedImage{
				Data: data, MediaType: constants.MediaTypeJPEG, Resized: true,
				Width: w, Height: h, Attempts: attempt,
			}, nil
		}

		boxW = int(math.Floor(float64(boxW) * p.opts.ShrinkFactor))
		boxH = int(math.Floor(float64(boxH) * p.opts.ShrinkFactor))
		quality = max(p.opts.MinQuality, quality-p.opts.QualityStep)
	}

	w, h := fitInside(bounds.Dx(), bounds.Dy(), p.opts.FallbackWidth, p.opts.FallbackHeight)
	data, err := encodeJPEG(src, w, h, p.opts.FallbackQuality)
	if err != nil {
		return PreparedImage{}, common.NewKindError(common.CodeInternal, "encode jpeg", err)
	}
	p.logger.Warn("imageprep.resize.fallback",
		"filename", u.Filename,
		"bytes", len(data),
		"limit_bytes", p.opts.MaxRawBytes,
		"width", w,
		"height", h,
		"elapsed_ms", time.Since(start).Milliseconds())
	return PreparedImage{
		Data: data, MediaType: constants.MediaTypeJPEG, Resized: true,
		Width: w, Height: h, Attempts: p.opts.MaxAttempts + 1,
	}, nil
}

// fitInside scales (w, h) to fit the box keeping aspect ratio, never enlarging.
func fitInside(w, h, boxW, boxH int) (int, int) {
	boxW, boxH = max(boxW, 1), max(boxH, 1)
	scale := math.Min(float64(boxW)/float64(w), float64(boxH)/float64(h))
	if scale >= 1 {
		return w, h
	}
	return max(1, int(math.Round(float64(w)*scale))), max(1, int(math.Round(float64(h)*scale)))
}

// encodeJPEG scales src to w x h over a white background, flattening any alpha.
func encodeJPEG(src image.Image, w, h, quality int) ([]byte, error) {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
