// Package bundle assembles a keepsake archive for a finished story: the
// narrative text, every scene illustration, and the compiled video, zipped
// and handed back as a single download.
package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/khuang/storyweaver/internal/story"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// zipMethodZstd is the ZIP compression method ID for Zstandard.
const zipMethodZstd uint16 = 93

var registerOnce sync.Once

// registerZstd registers the Zstandard compressor for ZIP bundles.
func registerZstd() {
	registerOnce.Do(func() {
		zip.RegisterCompressor(zipMethodZstd, func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(12)))
		})
	})
}

// AssetStore is the object-storage surface the builder needs.
type AssetStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Builder creates keepsake bundles.
type Builder struct {
	store AssetStore
}

// NewBuilder wraps an asset store.
func NewBuilder(store AssetStore) *Builder {
	registerZstd()
	return &Builder{store: store}
}

// Build zips the session's story text and assets, uploads the archive, and
// returns a download URL. Missing assets are skipped rather than failing the
// whole bundle.
func (b *Builder) Build(ctx context.Context, status story.SessionStatus, scenes []story.SceneRecord, title string) (string, error) {
	if status.SessionID == "" {
		return "", fmt.Errorf("no session to bundle")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if err := b.addText(zw, status, scenes, title); err != nil {
		return "", err
	}

	included := 0
	for _, scene := range scenes {
		if scene.AssetKey == "" {
			continue
		}
		if b.addAsset(ctx, zw, scene.AssetKey, fmt.Sprintf("illustrations/scene-%d.png", scene.Sequence)) {
			included++
		}
	}
	if status.CompiledAssetKey != "" {
		if b.addAsset(ctx, zw, status.CompiledAssetKey, "story-video.mp4") {
			included++
		}
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize bundle: %w", err)
	}

	key := fmt.Sprintf("%s/bundle/keepsake.zip", status.SessionID)
	url, err := b.store.Upload(ctx, key, buf.Bytes(), "application/zip")
	if err != nil {
		return "", fmt.Errorf("store bundle: %w", err)
	}

	log.Info().
		Str("session_id", status.SessionID).
		Int("assets", included).
		Int("bytes", buf.Len()).
		Msg("Keepsake bundle created")
	return url, nil
}

// addText writes the readable story transcript into the archive.
func (b *Builder) addText(zw *zip.Writer, status story.SessionStatus, scenes []story.SceneRecord, title string) error {
	header := &zip.FileHeader{
		Name:     "story.txt",
		Method:   zipMethodZstd,
		Modified: time.Now(),
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create story entry: %w", err)
	}

	var sb strings.Builder
	if title != "" {
		sb.WriteString(title)
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat("=", len(title)))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Theme: ")
	sb.WriteString(status.Theme)
	sb.WriteString("\n\n")
	for _, scene := range scenes {
		fmt.Fprintf(&sb, "--- Scene %d ---\n\n", scene.Sequence)
		for _, p := range scene.Paragraphs {
			sb.WriteString(p)
			sb.WriteString("\n\n")
		}
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("write story text: %w", err)
	}
	return nil
}

// addAsset copies one stored object into the archive, reporting whether it
// was included.
func (b *Builder) addAsset(ctx context.Context, zw *zip.Writer, key, name string) bool {
	data, err := b.store.Download(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Asset unavailable for bundle, skipping")
		return false
	}

	header := &zip.FileHeader{
		Name:     name,
		Method:   zipMethodZstd,
		Modified: time.Now(),
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		log.Warn().Err(err).Str("name", name).Msg("Failed to create bundle entry, skipping")
		return false
	}
	if _, err := w.Write(data); err != nil {
		log.Warn().Err(err).Str("name", name).Msg("Failed to write bundle entry, skipping")
		return false
	}
	return true
}
