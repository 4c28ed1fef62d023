package ui

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
)

// Icon names looked up as <name>.bmp in the assets directory.
const (
	IconVolumeUp  = "volume_up"
	IconVolumeOff = "volume_off"
	IconSource    = "source"
	IconSettings  = "settings"
	IconPrev      = "prev"
	IconNext      = "next"
	IconCancel    = "cancel"
)

var iconNames = []string{IconVolumeUp, IconVolumeOff, IconSource, IconSettings, IconPrev, IconNext, IconCancel}

// LoadIcons decodes the BMP icons found in dir. Missing files are skipped
// and drawn with vector fallbacks; unreadable files are errors.
func LoadIcons(dir string, logger *log.Logger) (map[string]image.Image, error) {
	if logger == nil {
		logger = log.Default()
	}
	icons := make(map[string]image.Image, len(iconNames))
	if dir == "" {
		return icons, nil
	}

	var missing []string
	for _, name := range iconNames {
		img, err := loadBMP(filepath.Join(dir, name+".bmp"))
		if errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return nil, err
		}
		icons[name] = img
	}
	if len(missing) > 0 {
		logger.Printf("Icons not found in %s, using fallbacks: %v", dir, missing)
	}
	return icons, nil
}

func loadBMP(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := bmp.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
