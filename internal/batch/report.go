package batch

import (
	"fmt"
	"path/filepath"
	"strings"
)

const Separator = "--------------------------------------------------"

// FormatResult renders the lines printed for one finished file.
func FormatResult(res Result) []string {
	name := filepath.Base(res.File)
	if !res.OK() {
		return []string{fmt.Sprintf("%s - Failed: %v", name, res.Err)}
	}
	if res.Output == nil {
		return []string{fmt.Sprintf("%s - Success", name)}
	}

	meta := res.Output.Meta
	title := meta.MustMusicName()
	if title == "" {
		title = "Unknown"
	}
	return []string{
		fmt.Sprintf("%s - %s.%s - Success", title, meta.FirstArtist(), strings.ToLower(meta.MustFormat())),
		fmt.Sprintf("Cover: %s", res.Output.Cover),
	}
}
