// Package convert turns base64url-encoded ISO/IEC 19794 records into base64url JPEG
// or PNG images. A batch converts completely or fails with the first error; no
// partial result is ever returned.
package convert

import (
	"context"
	"encoding/base64"
	"errors"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dunamismax/bioconvert/internal/convert"

// Request is one conversion batch. Values maps capture position keys to
// base64url-encoded records. The parameter maps are accepted and ignored.
type Request struct {
	Values           map[string]string
	SourceFormat     string
	TargetFormat     string
	SourceParameters map[string]string
	TargetParameters map[string]string
}

// Result carries one base64url (unpadded) image per input key.
type Result struct {
	Values map[string]string
}

// Converter is stateless after construction and safe for concurrent use.
type Converter struct {
	records  RecordDecoders
	dispatch dispatchTable
	tracer   trace.Tracer
}

func New(records RecordDecoders, codecs RasterCodecs) *Converter {
	return &Converter{
		records:  records,
		dispatch: newDispatchTable(codecs),
		tracer:   otel.Tracer(tracerName),
	}
}

// NewDefault returns a converter backed by the ISO 19794 record decoders and the
// raster package codecs.
func NewDefault() *Converter {
	return New(DefaultRecordDecoders(), DefaultRasterCodecs())
}

func (c *Converter) Convert(ctx context.Context, req Request) (Result, error) {
	_, span := c.tracer.Start(ctx, "convert.batch", trace.WithAttributes(
		attribute.String("bioconvert.source_format", req.SourceFormat),
		attribute.String("bioconvert.target_format", req.TargetFormat),
		attribute.Int("bioconvert.entries", len(req.Values)),
	))
	defer span.End()

	result, err := c.convert(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, CodeOf(err))
		return Result{}, err
	}
	return result, nil
}

func (c *Converter) convert(req Request) (Result, error) {
	if len(req.Values) == 0 {
		return Result{}, NewError(KindEmptySource, nil)
	}

	source, err := ResolveSource(req.SourceFormat)
	if err != nil {
		return Result{}, err
	}
	target, err := ResolveTarget(req.TargetFormat)
	if err != nil {
		return Result{}, err
	}
	if !target.Supported() {
		return Result{}, NewError(KindUnsupportedTargetFormat, nil)
	}

	keys := make([]string, 0, len(req.Values))
	for k := range req.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(keys))
	for _, key := range keys {
		converted, err := c.convertValue(source, target, req.Values[key])
		if err != nil {
			var e *Error
			if errors.As(err, &e) {
				e.Key = key
			}
			return Result{}, err
		}
		out[key] = converted
	}
	return Result{Values: out}, nil
}

func (c *Converter) convertValue(source SourceFormat, target TargetFormat, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", NewError(KindEmptySourceValue, nil)
	}

	raw, err := DecodeBase64URL(value)
	if err != nil {
		return "", NewError(KindInvalidBase64, err)
	}

	rec, err := c.records.extract(source.Modality, source.Version, raw)
	if err != nil {
		return "", err
	}

	img, err := c.dispatch.decode(rec)
	if err != nil {
		return "", err
	}

	data, err := encodeRaster(target, img)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeBase64URL decodes URL-safe base64, padded or not. Padding, when present,
// must be complete.
func DecodeBase64URL(s string) ([]byte, error) {
	if strings.Contains(s, "=") {
		return base64.URLEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}
