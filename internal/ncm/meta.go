package ncm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	UnknownAlbum  = "Unknown"
	UnknownArtist = "Unknown"
)

// Meta is the track record stored in the metadata block.
type Meta struct {
	Format        string          `json:"format"`
	MusicID       MusicID         `json:"musicId"`
	MusicName     string          `json:"musicName"`
	Artist        ArtistList      `json:"artist"`
	Album         string          `json:"album"`
	AlbumID       int64           `json:"albumId"`
	AlbumPicDocID json.RawMessage `json:"albumPicDocId"`
	AlbumPic      string          `json:"albumPic"`
	MVID          int64           `json:"mvId"`
	Flag          int             `json:"flag"`
	Bitrate       int             `json:"bitrate"`
	Duration      int             `json:"duration"`
	Alias         json.RawMessage `json:"alias"`      // 没见到数据, 不知其类型
	TransNames    json.RawMessage `json:"transNames"` // 没见到数据, 不知其类型
}

// DefaultMeta is used when the container has no metadata block.
func DefaultMeta(stem string) *Meta {
	return &Meta{
		Format:    FormatMP3,
		MusicName: stem,
		Artist:    ArtistList{},
		Album:     UnknownAlbum,
	}
}

// DecodeMeta unwraps and parses a metadata block.
func DecodeMeta(block []byte) (*Meta, error) {
	text, err := unwrapMeta(block)
	if err != nil {
		return nil, err
	}
	var m Meta
	if err = json.Unmarshal(text, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadata, err)
	}
	if m.Format == "" {
		m.Format = FormatMP3
	}
	m.Format = strings.ToLower(m.Format)
	for _, r := range m.Format {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return nil, fmt.Errorf("%w: unexpected format %q", ErrMetadata, m.Format)
		}
	}
	return &m, nil
}

func (m *Meta) MustFormat() string {
	if m == nil || m.Format == "" {
		return FormatMP3
	}
	return m.Format
}

// MustArtist joins all artist names with "/".
func (m *Meta) MustArtist() string {
	if m == nil {
		return ""
	}
	return norm.NFC.String(strings.Join(m.Artist, "/"))
}

// FirstArtist is the name shown in reports.
func (m *Meta) FirstArtist() string {
	if m == nil || len(m.Artist) == 0 || m.Artist[0] == "" {
		return UnknownArtist
	}
	return norm.NFC.String(m.Artist[0])
}

func (m *Meta) MustMusicName() string {
	if m == nil {
		return ""
	}
	return norm.NFC.String(m.MusicName)
}

func (m *Meta) MustAlbum() string {
	if m == nil {
		return ""
	}
	return norm.NFC.String(m.Album)
}

// ArtistList holds artist names. The block stores either plain names or
// [name, id] pairs.
type ArtistList []string

func (a *ArtistList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = ArtistList{}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	names := make(ArtistList, 0, len(items))
	for _, item := range items {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			names = append(names, name)
			continue
		}
		var pair []interface{}
		if err := json.Unmarshal(item, &pair); err != nil {
			return fmt.Errorf("unexpected artist entry %s", item)
		}
		if len(pair) > 0 {
			names = append(names, fmt.Sprintf("%v", pair[0]))
		}
	}
	*a = names
	return nil
}

// MusicID is the numeric track id. Some blocks store it as a string.
type MusicID int64

func (id *MusicID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("unexpected music id %s", data)
	}
	*id = MusicID(v)
	return nil
}
