package notifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileNotifier writes each alert's chart and caption into Dir. A later
// alert for the same unit overwrites the earlier files.
type FileNotifier struct {
	Dir string
}

func NewFileNotifier(dir string) *FileNotifier {
	return &FileNotifier{Dir: dir}
}

func (f *FileNotifier) Notify(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}

	base := strings.TrimSuffix(a.ImageName, filepath.Ext(a.ImageName))
	if base == "" {
		base = sanitize(a.Title)
	}
	if len(a.Image) > 0 {
		if err := os.WriteFile(filepath.Join(f.Dir, base+".png"), a.Image, 0o644); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
	}
	if err := os.WriteFile(filepath.Join(f.Dir, base+".txt"), []byte(a.Text+"\n"), 0o644); err != nil {
		return fmt.Errorf("write caption: %w", err)
	}
	return nil
}

// sanitize turns "BTCUSDT [1h]" into "BTCUSDT_1h".
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		case r == ' ', r == '_':
			return '_'
		}
		return -1
	}, s)
	if s == "" {
		return "alert"
	}
	return s
}
