package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cinemate/server/internal/domain"
	"github.com/cinemate/server/internal/repository/cache"
	"github.com/cinemate/server/pkg/ytvideodata"
)

var ErrVideoNotFound = errors.New("video not found")

var (
	directFileRe = regexp.MustCompile(`(?i)\.(mp4|webm|ogg|mov|mkv|avi|m3u8)(\?.*)?$`)
	youtubeIdRe  = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtube\.com/embed/|youtu\.be/)([\w-]{11})`)
)

type iCacheRepo interface {
	GetMedia(ctx context.Context, sourceUrl string) (cache.Media, error)
	SetMedia(ctx context.Context, sourceUrl string, media cache.Media) error
}

// service resolves a source url to a playable media reference. Resolution
// is best effort: anything unrecognized degrades to an embed reference
// instead of failing.
type service struct {
	cacheRepo  iCacheRepo
	httpClient *http.Client
	logger     *slog.Logger
}

func NewService(cacheRepo iCacheRepo, logger *slog.Logger) *service {
	return &service{
		cacheRepo:  cacheRepo,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (s *service) Resolve(ctx context.Context, sourceUrl string) (domain.MediaRef, error) {
	if cached, err := s.cacheRepo.GetMedia(ctx, sourceUrl); err == nil {
		return mediaRefFromCache(cached), nil
	} else if !errors.Is(err, cache.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to read media cache", "error", err)
	}

	media := s.resolve(ctx, sourceUrl)

	if err := s.cacheRepo.SetMedia(ctx, sourceUrl, cacheFromMediaRef(media)); err != nil {
		s.logger.WarnContext(ctx, "failed to write media cache", "error", err)
	}

	return media, nil
}

func (s *service) resolve(ctx context.Context, sourceUrl string) domain.MediaRef {
	if directFileRe.MatchString(sourceUrl) {
		kind := domain.MediaKindDirect
		if strings.Contains(sourceUrl, ".m3u8") {
			kind = domain.MediaKindHls
		}

		return domain.MediaRef{Url: sourceUrl, Title: "Video file", Kind: kind}
	}

	if matches := youtubeIdRe.FindStringSubmatch(sourceUrl); matches != nil {
		title := "Video"
		if videoData, err := ytvideodata.Get(matches[1]); err == nil && videoData.Title != "" {
			title = videoData.Title
		} else if err != nil {
			s.logger.DebugContext(ctx, "failed to get youtube video data", "error", err)
		}

		return domain.MediaRef{Url: sourceUrl, Title: title, Kind: domain.MediaKindEmbed}
	}

	return domain.MediaRef{Url: sourceUrl, Title: "Video", Kind: domain.MediaKindEmbed}
}

type rutubePlayOptions struct {
	Title         string `json:"title"`
	VideoBalancer struct {
		M3u8 string `json:"m3u8"`
	} `json:"video_balancer"`
}

// ResolveRutube queries the rutube play options API for the hls balancer
// url of a video.
func (s *service) ResolveRutube(ctx context.Context, videoId string) (domain.MediaRef, error) {
	url := fmt.Sprintf("https://rutube.ru/api/play/options/%s/", videoId)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.MediaRef{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.MediaRef{}, fmt.Errorf("failed to query rutube: %w", err)
	}
	defer resp.Body.Close()

	var options rutubePlayOptions
	if err := json.NewDecoder(resp.Body).Decode(&options); err != nil {
		return domain.MediaRef{}, fmt.Errorf("failed to decode rutube response: %w", err)
	}

	if options.VideoBalancer.M3u8 == "" {
		return domain.MediaRef{}, ErrVideoNotFound
	}

	title := options.Title
	if title == "" {
		title = "Rutube video"
	}

	return domain.MediaRef{Url: options.VideoBalancer.M3u8, Title: title, Kind: domain.MediaKindHls}, nil
}

// ResolveVK builds the vk external player url for an owner/video id pair.
func (s *service) ResolveVK(oid, id string) domain.MediaRef {
	return domain.MediaRef{
		Url:   fmt.Sprintf("https://vk.com/video_ext.php?oid=%s&id=%s", oid, id),
		Title: "VK video",
		Kind:  domain.MediaKindEmbed,
	}
}

func mediaRefFromCache(media cache.Media) domain.MediaRef {
	return domain.MediaRef{Url: media.Url, Title: media.Title, Kind: domain.MediaKind(media.Kind)}
}

func cacheFromMediaRef(media domain.MediaRef) cache.Media {
	return cache.Media{Url: media.Url, Title: media.Title, Kind: string(media.Kind)}
}
