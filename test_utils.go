package main

import (
	"bytes"
	"compress/gzip"
	"github.com/stretchr/testify/assert"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testSetXML = `<?xml version="1.0" encoding="UTF-8"?>
<Ableton MajorVersion="5" MinorVersion="12.0_12049" Creator="Ableton Live 12.0.5">
	<LiveSet>
		<Tracks>
			<GroupTrack Id="3">
				<Name><EffectiveName Value="Rhythm" /><UserName Value="" /></Name>
				<TrackGroupId Value="-1" />
			</GroupTrack>
			<AudioTrack Id="42">
				<Name><EffectiveName Value="Drums" /><UserName Value="" /></Name>
				<TrackGroupId Value="3" />
			</AudioTrack>
			<MidiTrack Id="7">
				<Name><EffectiveName Value="Bass" /><UserName Value="" /></Name>
				<TrackGroupId Value="-1" />
			</MidiTrack>
		</Tracks>
	</LiveSet>
</Ableton>`

func createTempProject(t *testing.T) string {
	tempProjectPath, err := os.MkdirTemp("", "set-tools-")
	assert.NoError(t, err)

	tempProjectAbsolutePath, err := filepath.Abs(tempProjectPath)
	assert.NoError(t, err)

	return tempProjectAbsolutePath
}

// writeTestSet writes a gzip compressed set with one group holding a track.
func writeTestSet(t *testing.T, filePath string, modifiedAt time.Time) {
	var buffer bytes.Buffer
	writer := gzip.NewWriter(&buffer)

	_, err := writer.Write([]byte(testSetXML))
	assert.NoError(t, err)
	assert.NoError(t, writer.Close())

	assert.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0750))
	assert.NoError(t, os.WriteFile(filePath, buffer.Bytes(), 0600))
	assert.NoError(t, os.Chtimes(filePath, modifiedAt, modifiedAt))
}
