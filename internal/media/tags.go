package media

import (
	"fmt"

	"github.com/bogem/id3v2/v2"

	"github.com/desertthunder/podsync/internal/shared"
)

// ID3 reads artwork from and writes title/artist to ID3v2 tags.
type ID3 struct{}

// CoverArt returns the front cover, or the first attached picture when no front cover exists.
func (ID3) CoverArt(path string) (*Image, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"Attached picture"}})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCoverArt, err)
	}
	defer tag.Close()

	var found *id3v2.PictureFrame
	for _, f := range tag.GetFrames(tag.CommonID("Attached picture")) {
		pic, ok := f.(id3v2.PictureFrame)
		if !ok || len(pic.Picture) == 0 {
			continue
		}
		if found == nil || pic.PictureType == id3v2.PTFrontCover {
			found = &pic
		}
		if pic.PictureType == id3v2.PTFrontCover {
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no embedded picture in %s", shared.ErrCoverArt, path)
	}
	return &Image{Data: found.Picture, MIMEType: found.MimeType}, nil
}

func (ID3) Update(path, title, artist string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTagWrite, err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(title)
	tag.SetArtist(artist)
	if err := tag.Save(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTagWrite, err)
	}
	return nil
}
