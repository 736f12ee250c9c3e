// Package models maps model settings to whisper.cpp ggml files and fetches
// missing files from HuggingFace.
package models

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// BaseURL is the HuggingFace repository serving ggml whisper models.
var BaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// FileName returns the ggml file name for a model and compute type.
// int8 maps to q8_0 and int5 to q5_1; float16, float32 and default use
// the unquantized file.
func FileName(model, computeType string) string {
	name := "ggml-" + strings.TrimSpace(model)
	switch strings.ToLower(strings.TrimSpace(computeType)) {
	case "int8", "int8_float16", "int8_float32":
		name += "-q8_0"
	case "int5":
		name += "-q5_1"
	}
	return name + ".bin"
}

// Resolve returns a local path for the model. A model value naming an
// existing file is used as-is. Otherwise the ggml file is looked up in dir
// and downloaded when missing.
func Resolve(ctx context.Context, dir, model, computeType string) (string, error) {
	if info, err := os.Stat(model); err == nil && !info.IsDir() {
		return model, nil
	}
	if model == "" {
		return "", fmt.Errorf("models: empty model name")
	}

	name := FileName(model, computeType)
	destPath := filepath.Join(dir, name)
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		return destPath, nil
	}

	if err := Download(ctx, BaseURL+"/"+name, destPath); err != nil {
		return "", err
	}
	return destPath, nil
}

// Download fetches url into destPath through a temp file, so a partial
// download never looks like a model.
func Download(ctx context.Context, url, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("models: create models dir: %w", err)
	}

	slog.Info("models: downloading", "url", url, "dest", destPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("models: build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("models: download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("models: download %s: HTTP %d", url, resp.StatusCode)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("models: create temp file: %w", err)
	}

	pw := &progressWriter{
		writer: f,
		total:  resp.ContentLength,
		label:  filepath.Base(destPath),
	}
	written, err := io.Copy(pw, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("models: write model file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("models: move model file: %w", err)
	}

	slog.Info("models: downloaded", "path", destPath, "mb", float64(written)/(1024*1024))
	return nil
}

// progressWriter wraps an io.Writer and logs download progress every 10%.
type progressWriter struct {
	writer  io.Writer
	total   int64
	written int64
	label   string
	lastPct int
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := int(pw.written * 100 / pw.total)
		if pct/10 > pw.lastPct/10 {
			pw.lastPct = pct
			slog.Info("models: download progress", "file", pw.label, "percent", pct)
		}
	}
	return n, err
}
