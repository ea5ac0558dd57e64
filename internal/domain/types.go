package domain

// SourceKind identifies where a media asset comes from.
type SourceKind string

const (
	SourceYouTube SourceKind = "YOUTUBE"
	SourceUpload  SourceKind = "RAW_FILE"
)

// MediaType is the container/codec of a media file. Only one conversion
// path is supported: MP4 in, MP3 out.
type MediaType string

const (
	MediaTypeUnknown MediaType = ""
	MediaTypeMP4     MediaType = "mp4"
	MediaTypeMP3     MediaType = "mp3"
)

// Media carries one asset through the generation pipeline. It is transient:
// once a subtitle is durably stored only a projection of it is persisted.
type Media struct {
	ID              string
	OwnerID         string
	Title           string
	DurationSeconds int
	Source          SourceKind
	SourceURL       string
	ThumbnailURL    string
	Type            MediaType
	LocalPath       string
	Workdir         string
}

