package ytvideodata

import (
	"errors"
	"fmt"
)

type VideoData struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

// Get resolves the title of a YouTube video by id, trying the oEmbed
// endpoint first and scraping the watch page when the video is not
// embeddable.
func Get(videoId string) (*VideoData, error) {
	videoData, err := getWithOembed(videoId)
	if err != nil {
		if !errors.Is(err, ErrVideoNotEmbeddable) {
			return nil, fmt.Errorf("failed to get video data with oembed: %w", err)
		}

		videoData, err = getFromPage(videoId)
		if err != nil {
			return nil, fmt.Errorf("failed to get video data from page: %w", err)
		}
	}

	return videoData, nil
}
