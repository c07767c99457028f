package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const ncmExt = ".ncm"

var (
	ErrFindNCMFailed = errors.New("find *.ncm failed")
	ErrNotNCMFile    = errors.New("not ncm file")
	ErrNoNCMFile     = errors.New("no ncm file")
)

// IsNCM reports whether name has the ncm extension, in any case.
func IsNCM(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ncmExt)
}

func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func getNCMFromDir(input string) ([]string, error) {
	if input == "" {
		return nil, nil
	}
	var inputFiles []string
	err := filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsNCM(d.Name()) {
			return nil
		}
		resolved, err := resolve(path)
		if err != nil {
			return err
		}
		inputFiles = append(inputFiles, resolved)
		return nil
	})
	return inputFiles, err
}

func getNCMFromFile(files []string) ([]string, error) {
	var inputFiles []string
	for _, v := range files {
		info, err := os.Stat(v)
		if err != nil {
			return nil, err
		}
		if info.IsDir() || !IsNCM(info.Name()) {
			return nil, fmt.Errorf("%w: %s", ErrNotNCMFile, v)
		}
		resolved, err := resolve(v)
		if err != nil {
			return nil, err
		}
		inputFiles = append(inputFiles, resolved)
	}
	return inputFiles, nil
}

// Discover collects ncm files below dir plus the explicitly named files,
// deduplicated by resolved path and sorted.
func Discover(dir string, files []string) ([]string, error) {
	inputFiles := make(map[string]struct{})
	list, err := getNCMFromDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFindNCMFailed, err)
	}
	for _, v := range list {
		inputFiles[v] = struct{}{}
	}

	list, err = getNCMFromFile(files)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFindNCMFailed, err)
	}
	for _, v := range list {
		inputFiles[v] = struct{}{}
	}
	if len(inputFiles) == 0 {
		return nil, ErrNoNCMFile
	}

	out := make([]string, 0, len(inputFiles))
	for v := range inputFiles {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}
