// Package dataset reads samples from disk into records.
//
// A sample is a directory laid out as
//
//	<sample>/image/   slice images, ordered by the number in the filename
//	<sample>/label/   label slices with the same names count (optional)
//	<sample>/roi.yaml bounding box in image pixels (optional)
//
// or, for a single 2D slice, image.<ext> and label.<ext> directly inside the
// sample directory. PNG, JPEG, GIF, BMP, TIFF and WebP are decoded.
package dataset

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"gopkg.in/yaml.v3"

	"medaug/internal/models"
)

const (
	imageName = "image"
	labelName = "label"
	roiFile   = "roi.yaml"
)

var (
	// ErrNotSample is returned when a directory holds neither an image
	// directory nor an image file.
	ErrNotSample = errors.New("not a sample directory")

	// ErrSliceCount is returned when image and label slice counts differ.
	ErrSliceCount = errors.New("image and label slice counts differ")
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// Sample is one loaded record and where it came from.
type Sample struct {
	// Name is the sample directory's base name
	Name string

	// Dir is the sample directory
	Dir string

	// Record holds image.Image values for 2D samples and []image.Image for
	// stacks. Meta carries the sample name and its slice file names.
	Record models.Record
}

// Discover returns the sample directories under root, sorted by name. If
// root is itself a sample it is the only result.
func Discover(root string) ([]string, error) {
	if isSample(root) {
		return []string{root}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if isSample(dir) {
			dirs = append(dirs, dir)
		}
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("%w: no samples found in %s", ErrNotSample, root)
	}
	sort.Strings(dirs)
	return dirs, nil
}

func isSample(dir string) bool {
	if fi, err := os.Stat(filepath.Join(dir, imageName)); err == nil && fi.IsDir() {
		return true
	}
	_, err := findSingle(dir, imageName)
	return err == nil
}

// Load reads one sample directory.
func Load(dir string) (Sample, error) {
	s := Sample{Name: filepath.Base(dir), Dir: dir}
	meta := map[string]any{"sample": s.Name}

	if fi, err := os.Stat(filepath.Join(dir, imageName)); err == nil && fi.IsDir() {
		images, names, err := loadStack(filepath.Join(dir, imageName))
		if err != nil {
			return Sample{}, fmt.Errorf("%s: %w", s.Name, err)
		}
		s.Record.Image = images
		meta["slices"] = names

		labelDir := filepath.Join(dir, labelName)
		if _, err := os.Stat(labelDir); err == nil {
			labels, _, err := loadStack(labelDir)
			if err != nil {
				return Sample{}, fmt.Errorf("%s: %w", s.Name, err)
			}
			if len(labels) != len(images) {
				return Sample{}, fmt.Errorf("%s: %w (%d vs %d)", s.Name, ErrSliceCount, len(images), len(labels))
			}
			s.Record.Label = labels
		}
	} else {
		path, err := findSingle(dir, imageName)
		if err != nil {
			return Sample{}, fmt.Errorf("%s: %w", s.Name, err)
		}
		img, err := loadImage(path)
		if err != nil {
			return Sample{}, fmt.Errorf("failed to load image %s: %w", path, err)
		}
		s.Record.Image = img
		meta["slices"] = []string{filepath.Base(path)}

		if path, err := findSingle(dir, labelName); err == nil {
			lbl, err := loadImage(path)
			if err != nil {
				return Sample{}, fmt.Errorf("failed to load label %s: %w", path, err)
			}
			s.Record.Label = lbl
		}
	}

	roi, err := LoadROI(filepath.Join(dir, roiFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Sample{}, fmt.Errorf("%s: %w", s.Name, err)
	}
	s.Record.ROI = roi
	s.Record.Meta = meta

	return s, nil
}

// LoadROI reads a bounding box from a YAML file.
func LoadROI(path string) (*models.BoundingBox, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var box models.BoundingBox
	if err := yaml.Unmarshal(data, &box); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", filepath.Base(path), err)
	}
	return &box, nil
}

// SaveROI writes a bounding box as YAML.
func SaveROI(path string, box models.BoundingBox) error {
	data, err := yaml.Marshal(box)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// loadStack decodes every image file in dir, ordered by the number in the
// filename.
func loadStack(dir string) ([]image.Image, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no images found in %s", dir)
	}

	// Slice order follows the number in the filename; ties keep name order
	sort.SliceStable(files, func(i, j int) bool {
		ni, nj := extractNumber(files[i]), extractNumber(files[j])
		if ni != nj {
			return ni < nj
		}
		return files[i] < files[j]
	})

	images := make([]image.Image, 0, len(files))
	for _, name := range files {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}
		images = append(images, img)
	}
	return images, files, nil
}

// findSingle finds <dir>/<stem>.<ext> for any supported extension.
func findSingle(dir, stem string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		name := e.Name()
		ext := filepath.Ext(name)
		if !e.IsDir() && imageExts[strings.ToLower(ext)] && strings.TrimSuffix(name, ext) == stem {
			return filepath.Join(dir, name), nil
		}
	}
	return "", fmt.Errorf("%w: no %s file in %s", ErrNotSample, stem, dir)
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}

	return img, nil
}
