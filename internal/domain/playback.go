package domain

import "time"

type MediaKind string

const (
	MediaKindDirect MediaKind = "direct"
	MediaKindHls    MediaKind = "hls"
	MediaKindEmbed  MediaKind = "embed"
)

type MediaRef struct {
	Url   string    `json:"url"`
	Title string    `json:"title"`
	Kind  MediaKind `json:"kind"`
}

// PlaybackState is the authoritative description of what is playing and
// where. PositionSeconds is exact as of UpdatedAt; while playing, the true
// position is PositionSeconds plus the wall-clock time elapsed since then.
// The state is always replaced as a whole, never mutated field by field.
type PlaybackState struct {
	Media           *MediaRef `json:"media"`
	IsPlaying       bool      `json:"isPlaying"`
	PositionSeconds float64   `json:"positionSeconds"`
	UpdatedAt       time.Time `json:"-"`
	Sequence        uint64    `json:"sequenceNumber"`
}

// NewPlaybackState returns the state of a freshly created room: no media,
// paused at zero.
func NewPlaybackState(now time.Time) PlaybackState {
	return PlaybackState{UpdatedAt: now}
}

type CommandAction string

const (
	CommandLoad  CommandAction = "load"
	CommandPlay  CommandAction = "play"
	CommandPause CommandAction = "pause"
	CommandSeek  CommandAction = "seek"
)

type Command struct {
	Action CommandAction
	Media  *MediaRef
	// Time is the explicit position in seconds, if the client supplied one.
	Time *float64
}

// Apply produces the fully-specified successor state for cmd. The sequence
// number is incremented on every accepted command.
func (s PlaybackState) Apply(cmd Command, now time.Time) (PlaybackState, error) {
	next := PlaybackState{
		Media:     s.Media,
		UpdatedAt: now,
		Sequence:  s.Sequence + 1,
	}

	switch cmd.Action {
	case CommandLoad:
		if cmd.Media == nil || cmd.Media.Url == "" {
			return PlaybackState{}, ErrInvalidCommand
		}
		media := *cmd.Media
		if media.Title == "" {
			media.Title = "Video"
		}
		if media.Kind == "" {
			media.Kind = MediaKindDirect
		}
		next.Media = &media
		next.IsPlaying = false
		next.PositionSeconds = 0
	case CommandPlay:
		next.IsPlaying = true
		next.PositionSeconds = CorrectedPosition(s, now)
		if cmd.Time != nil {
			next.PositionSeconds = *cmd.Time
		}
	case CommandPause:
		next.IsPlaying = false
		next.PositionSeconds = CorrectedPosition(s, now)
		if cmd.Time != nil {
			next.PositionSeconds = *cmd.Time
		}
	case CommandSeek:
		if cmd.Time == nil {
			return PlaybackState{}, ErrInvalidCommand
		}
		// a seek always lands paused, the leader resumes with an explicit play
		next.IsPlaying = false
		next.PositionSeconds = *cmd.Time
	default:
		return PlaybackState{}, ErrInvalidCommand
	}

	if next.PositionSeconds < 0 {
		next.PositionSeconds = 0
	}

	return next, nil
}
