package parser

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"set-tools/models"
	"strconv"
)

var trackElements = map[string]models.TrackType{
	"AudioTrack":  models.TrackTypeAudio,
	"MidiTrack":   models.TrackTypeMidi,
	"GroupTrack":  models.TrackTypeGroup,
	"ReturnTrack": models.TrackTypeReturn,
}

type xmlValue struct {
	Value string `xml:"Value,attr"`
}

type xmlTrack struct {
	ID            string   `xml:"Id,attr"`
	EffectiveName xmlValue `xml:"Name>EffectiveName"`
	UserName      xmlValue `xml:"Name>UserName"`
	TrackGroupID  xmlValue `xml:"TrackGroupId"`
	Color         xmlValue `xml:"Color"`
	OutputRouting xmlValue `xml:"DeviceChain>AudioOutputRouting>Target"`
	Freeze        xmlValue `xml:"Freeze"`
}

type trackPayload struct {
	Color         string `json:"color,omitempty"`
	OutputRouting string `json:"outputRouting,omitempty"`
	Frozen        bool   `json:"frozen,omitempty"`
}

// GzipXMLParser reads gzip-compressed XML set documents. Tracks are the
// direct children of LiveSet/Tracks.
type GzipXMLParser struct{}

func (GzipXMLParser) Parse(ctx context.Context, filePath string) (*Document, error) {
	file, err := os.Open(path.Clean(filePath))

	if err != nil {
		return nil, err
	}

	defer file.Close()

	reader, err := gzip.NewReader(file)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotADocument, err)
	}

	defer reader.Close()

	return decodeDocument(ctx, reader)
}

func decodeDocument(ctx context.Context, reader io.Reader) (*Document, error) {
	decoder := xml.NewDecoder(reader)
	document := &Document{}
	var stack []string
	sawRoot := false

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		token, err := decoder.Token()

		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotADocument, err)
		}

		switch element := token.(type) {
		case xml.StartElement:
			if !sawRoot {
				sawRoot = true
				document.DocumentVersion = documentVersion(element)
			}

			trackType, isTrack := trackElements[element.Name.Local]

			if isTrack && isTrackList(stack) {
				track, err := decodeTrack(decoder, element, trackType)

				if err != nil {
					return nil, err
				}

				document.Tracks = append(document.Tracks, track)
				continue
			}

			stack = append(stack, element.Name.Local)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if !sawRoot {
		return nil, ErrNotADocument
	}

	return document, nil
}

func isTrackList(stack []string) bool {
	count := len(stack)
	return count >= 2 && stack[count-2] == "LiveSet" && stack[count-1] == "Tracks"
}

func documentVersion(root xml.StartElement) string {
	minorVersion := ""

	for _, attr := range root.Attr {
		switch attr.Name.Local {
		case "Creator":
			if attr.Value != "" {
				return attr.Value
			}
		case "MinorVersion":
			minorVersion = attr.Value
		}
	}

	return minorVersion
}

func decodeTrack(decoder *xml.Decoder, element xml.StartElement, trackType models.TrackType) (TrackAttrs, error) {
	var raw xmlTrack

	err := decoder.DecodeElement(&raw, &element)

	if err != nil {
		return TrackAttrs{}, fmt.Errorf("%w: %v", ErrNotADocument, err)
	}

	id, err := strconv.Atoi(raw.ID)

	if err != nil {
		return TrackAttrs{}, fmt.Errorf("%w: track id %q", ErrNotADocument, raw.ID)
	}

	name := raw.UserName.Value

	if name == "" {
		name = raw.EffectiveName.Value
	}

	track := TrackAttrs{
		ID:   id,
		Name: name,
		Type: trackType,
	}

	// -1 marks the root level
	if groupID, err := strconv.Atoi(raw.TrackGroupID.Value); err == nil && groupID >= 0 {
		track.ParentGroupID = &groupID
	}

	payload, err := json.Marshal(trackPayload{
		Color:         raw.Color.Value,
		OutputRouting: raw.OutputRouting.Value,
		Frozen:        raw.Freeze.Value == "true",
	})

	if err != nil {
		return TrackAttrs{}, err
	}

	track.Payload = string(payload)

	return track, nil
}
