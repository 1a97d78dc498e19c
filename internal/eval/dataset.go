package eval

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoders for image.Decode
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmptyDataset is returned when the dataset root holds no usable images.
var ErrEmptyDataset = errors.New("dataset has no images")

// imageExts are the file extensions picked up by OpenImageFolder.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// Sample is one labelled image file.
type Sample struct {
	Path  string
	Class int
}

// Dataset is an ImageFolder-style labelled image set: one directory per
// class, classes indexed in sorted name order.
type Dataset struct {
	Root    string
	Classes []string
	Samples []Sample
}

// OpenImageFolder lists the dataset under root. When root has a "val"
// subdirectory that is used instead.
func OpenImageFolder(root string) (*Dataset, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", root, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("dataset %q: not a directory", root)
	}

	dir := root
	if st, err := os.Stat(filepath.Join(root, "val")); err == nil && st.IsDir() {
		dir = filepath.Join(root, "val")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", dir, err)
	}

	ds := &Dataset{Root: dir}

	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			ds.Classes = append(ds.Classes, e.Name())
		}
	}

	slices.Sort(ds.Classes)

	for class, name := range ds.Classes {
		files, err := os.ReadDir(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("dataset class %q: %w", name, err)
		}

		var paths []string

		for _, f := range files {
			if f.IsDir() || !imageExts[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}

			paths = append(paths, filepath.Join(dir, name, f.Name()))
		}

		slices.Sort(paths)

		for _, p := range paths {
			ds.Samples = append(ds.Samples, Sample{Path: p, Class: class})
		}
	}

	if len(ds.Samples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDataset, dir)
	}

	return ds, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Samples) }

// LabelScale maps class indices of a subsampled ImageNet validation set back
// onto the 1000-class label space. The ratio is clamped to at least 1.
func (d *Dataset) LabelScale() int {
	scale := 50000 / len(d.Samples)
	if scale < 1 {
		scale = 1
	}

	return scale
}

// Target returns the remapped label for sample i. A set holding every 50th
// class gets offset 15 on top of the scale.
func (d *Dataset) Target(i int) int {
	scale := d.LabelScale()

	offset := 0
	if scale == 50 {
		offset = 15
	}

	return d.Samples[i].Class*scale + offset
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return img, nil
}
