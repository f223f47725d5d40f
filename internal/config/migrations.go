package config

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"

	"tools.zach/dev/bannergen/internal/migrate"
)

func init() {
	migrate.Config.Register(migrate.Migration{
		Version:     2,
		Description: "rename article.feed to article.feed_url, layout.thumb to layout.thumb_size",
		Upgrade:     upgradeV2,
	})
}

// upgradeV2 moves the version 1 keys to their version 2 names. In version 1
// thumbnails were square, so layout.thumb = N becomes thumb_size = [N, N].
func upgradeV2(data []byte) ([]byte, error) {
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse v1 config: %w", err)
	}

	if article, ok := doc["article"].(map[string]any); ok {
		if feed, ok := article["feed"]; ok {
			if _, exists := article["feed_url"]; !exists {
				article["feed_url"] = feed
			}
			delete(article, "feed")
		}
	}
	if layout, ok := doc["layout"].(map[string]any); ok {
		if thumb, ok := layout["thumb"]; ok {
			n, ok := thumb.(int64)
			if !ok {
				return nil, fmt.Errorf("layout.thumb: want an integer, got %T", thumb)
			}
			if _, exists := layout["thumb_size"]; !exists {
				layout["thumb_size"] = []int64{n, n}
			}
			delete(layout, "thumb")
		}
	}
	doc["version"] = int64(2)

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("encode v2 config: %w", err)
	}
	return buf.Bytes(), nil
}
