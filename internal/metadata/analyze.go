package metadata

import (
	"errors"
	"os"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// ExifTags returns the flattened EXIF tag names present in the file, or nil
// when it carries no EXIF block. The universal search handles the common
// container layouts; it misses EXIF blocks in some otherwise valid files, so
// a raw byte scan backs it up before the file is declared EXIF-free.
func ExifTags(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(f, nil, true)
	if err == nil && len(tags) > 0 {
		return tagNames(tags), nil
	}
	if err != nil && !isNoExif(err) {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) || isNoExif(err) {
			return nil, nil
		}
		return nil, err
	}
	tags, _, err = exif.GetFlatExifData(raw, nil)
	if err != nil {
		return nil, err
	}
	return tagNames(tags), nil
}

// HasExif reports whether the file carries any EXIF data.
func HasExif(path string) (bool, error) {
	tags, err := ExifTags(path)
	if err != nil {
		return false, err
	}
	return len(tags) > 0, nil
}

func tagNames(tags []exif.ExifTag) []string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.TagName)
	}
	return names
}

func isNoExif(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "no exif")
}
