package fetch

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// downloadLine matches yt-dlp's --newline progress output, e.g.
//
//	[download]  45.2% of 10.00MiB at 1.21MiB/s ETA 00:05
//	[download]  12.0% of ~256.00KiB at Unknown B/s ETA Unknown
var downloadLine = regexp.MustCompile(
	`^\[download\]\s+([\d.]+)%\s+of\s+~?\s*([\d.]+)(Ki|Mi|Gi|Ti)?B`,
)

// parseProgressLine interprets one stdout line. Post-processing markers
// ([Merger], [ExtractAudio], [VideoConvertor]) report a transfer-complete
// progress so callers can switch stages.
func parseProgressLine(line string) (Progress, bool) {
	if strings.HasPrefix(line, "[Merger]") ||
		strings.HasPrefix(line, "[ExtractAudio]") ||
		strings.HasPrefix(line, "[VideoConvertor]") ||
		strings.HasPrefix(line, "[EmbedSubtitle]") {
		return Progress{PostProcessing: true, Total: -1}, true
	}

	m := downloadLine.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}

	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Progress{}, false
	}
	size, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Progress{}, false
	}
	total := int64(size * float64(sizeUnit(m[3])))
	if total <= 0 {
		return Progress{Downloaded: 0, Total: -1}, true
	}
	return Progress{
		Downloaded: int64(percent / 100 * float64(total)),
		Total:      total,
	}, true
}

// sizeUnit maps a binary size prefix to its byte multiplier.
func sizeUnit(prefix string) int64 {
	switch prefix {
	case "Ki":
		return 1 << 10
	case "Mi":
		return 1 << 20
	case "Gi":
		return 1 << 30
	case "Ti":
		return 1 << 40
	}
	return 1
}

// parsePrintedPath recognizes the output path printed by
// --print after_move:filepath. Progress and log lines start with a bracket
// tag; the printed path is bare.
func parsePrintedPath(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "[") {
		return ""
	}
	return line
}

// parsePlaylist extracts entry URLs from yt-dlp's -J --flat-playlist
// output. Single-video JSON (no entries array) yields nothing; the caller
// falls back to the original URL.
func parsePlaylist(data []byte) ([]string, error) {
	var doc struct {
		Entries []struct {
			URL string `json:"url"`
			ID  string `json:"id"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		switch {
		case e.URL != "":
			urls = append(urls, e.URL)
		case e.ID != "":
			urls = append(urls, "https://www.youtube.com/watch?v="+e.ID)
		}
	}
	return urls, nil
}
