package coffeereview

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Selection narrows a URL list for one scrape batch.
type Selection struct {
	NewestFirst bool // reverse the list before offset and limit
	Offset      int
	Limit       int // 0 means no limit
	Skip        map[string]struct{}
}

// ReadURLList reads one URL per line, ignoring blank lines and # comments.
func ReadURLList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return urls, nil
}

// Apply returns the URLs selected from urls. The input is not modified.
func (sel Selection) Apply(urls []string) []string {
	out := make([]string, len(urls))
	copy(out, urls)

	if sel.NewestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if sel.Offset > 0 {
		if sel.Offset >= len(out) {
			return nil
		}
		out = out[sel.Offset:]
	}
	if sel.Limit > 0 && sel.Limit < len(out) {
		out = out[:sel.Limit]
	}
	if len(sel.Skip) > 0 {
		kept := out[:0]
		for _, u := range out {
			if _, ok := sel.Skip[u]; !ok {
				kept = append(kept, u)
			}
		}
		out = kept
	}
	return out
}
