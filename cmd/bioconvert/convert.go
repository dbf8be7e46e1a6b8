package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dunamismax/bioconvert/internal/convert"
	"github.com/dunamismax/bioconvert/internal/raster"
)

// runConvert converts every file as one batch keyed by path, so a bad file fails
// the whole run before anything is written.
func runConvert(args []string, stdout io.Writer, logger *log.Logger) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stdout)
	source := fs.String("source", convert.SourceFinger2011.Token, "source record format")
	target := fs.String("target", convert.TargetPNG.Token, "target image format")
	key := fs.String("key", "", "batch key for a single input file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	files := fs.Args()
	if len(files) == 0 {
		return fmt.Errorf("at least one record file is required")
	}
	if *key != "" && len(files) != 1 {
		return fmt.Errorf("-key needs exactly one file, got %d", len(files))
	}

	ext, err := extensionFor(*target)
	if err != nil {
		return err
	}

	outputs, err := outputPaths(files, ext)
	if err != nil {
		return err
	}

	values := make(map[string]string, len(files))
	paths := make(map[string]string, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		k := path
		if *key != "" {
			k = *key
		}
		values[k] = base64.RawURLEncoding.EncodeToString(data)
		paths[k] = path
	}

	if err := raster.Startup(); err != nil {
		return fmt.Errorf("raster runtime: %w", err)
	}
	defer raster.Shutdown()

	res, err := convert.NewDefault().Convert(context.Background(), convert.Request{
		Values:       values,
		SourceFormat: *source,
		TargetFormat: *target,
	})
	if err != nil {
		return fmt.Errorf("code=%s: %w", convert.CodeOf(err), err)
	}

	for k, encoded := range res.Values {
		img, err := base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			return fmt.Errorf("decode output for %s: %w", k, err)
		}
		in := paths[k]
		out := outputs[in]
		if err := os.WriteFile(out, img, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		logger.Printf("converted input=%s output=%s bytes=%d", in, out, len(img))
		fmt.Fprintln(stdout, out)
	}
	return nil
}

// outputPaths maps every input to the image written next to it. Inputs that differ
// only in extension would share an output, so they are rejected up front.
func outputPaths(files []string, ext string) (map[string]string, error) {
	outputs := make(map[string]string, len(files))
	owners := make(map[string]string, len(files))
	for _, in := range files {
		out := strings.TrimSuffix(in, filepath.Ext(in)) + ext
		if prev, ok := owners[filepath.Clean(out)]; ok {
			return nil, fmt.Errorf("%s and %s would both write %s", prev, in, out)
		}
		owners[filepath.Clean(out)] = in
		outputs[in] = out
	}
	return outputs, nil
}

func extensionFor(target string) (string, error) {
	t, err := convert.ResolveTarget(target)
	if err != nil {
		return "", fmt.Errorf("target %q: %w", target, err)
	}
	switch t {
	case convert.TargetJPEG:
		return ".jpg", nil
	case convert.TargetPNG:
		return ".png", nil
	default:
		return "", fmt.Errorf("target %q: %w", target, convert.NewError(convert.KindUnsupportedTargetFormat, nil))
	}
}
