package ingest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/tormoder/fit"
)

var fitStart = time.Date(2026, 2, 26, 23, 0, 0, 0, time.UTC)

func TestDecodeFITRecordsAndLaps(t *testing.T) {
	rec, err := Decode("evening.fit", buildTestFIT(t))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if rec.Format != FormatFIT || rec.Name != "evening" {
		t.Fatalf("unexpected recording header: %s %q", rec.Format, rec.Name)
	}
	if len(rec.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(rec.Samples))
	}

	first := rec.Samples[0]
	if !first.Timestamp.Equal(fitStart) {
		t.Fatalf("samples not sorted by time: first at %s", first.Timestamp)
	}
	if first.Power == nil || *first.Power != 245 {
		t.Fatalf("unexpected power %v", first.Power)
	}
	if first.Altitude == nil || math.Abs(*first.Altitude-120) > 1e-6 {
		t.Fatalf("unexpected altitude %v", first.Altitude)
	}
	if first.Distance == nil || math.Abs(*first.Distance-0) > 1e-6 {
		t.Fatalf("unexpected distance %v", first.Distance)
	}

	// The second record has its power field left invalid.
	if rec.Samples[1].Power != nil {
		t.Fatalf("expected invalid power to decode as nil, got %d", *rec.Samples[1].Power)
	}
	if rec.Samples[1].Lat != nil {
		t.Fatalf("expected missing position, got %v", *rec.Samples[1].Lat)
	}

	if len(rec.Laps) != 1 {
		t.Fatalf("expected 1 lap, got %d", len(rec.Laps))
	}
	lap := rec.Laps[0]
	if lap.Start == nil || !lap.Start.Equal(fitStart) || lap.End == nil || !lap.End.Equal(fitStart.Add(2*time.Second)) {
		t.Fatalf("unexpected lap window %v-%v", lap.Start, lap.End)
	}
	if lap.MaxPower == nil || *lap.MaxPower != 310 || lap.TotalAscent != nil {
		t.Fatalf("unexpected lap fields %+v", lap)
	}
}

func TestDecodeGPXTrack(t *testing.T) {
	const doc = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
	<trk>
		<name>Col loop</name>
		<trkseg>
			<trkpt lat="46.0" lon="7.0"><ele>1000</ele><time>2025-01-01T10:00:00Z</time></trkpt>
			<trkpt lat="46.001" lon="7.001"><ele>1005.5</ele><time>2025-01-01T10:00:01.500Z</time></trkpt>
			<trkpt lat="46.002" lon="7.002"></trkpt>
		</trkseg>
	</trk>
</gpx>`

	rec, err := Decode("upload.bin", []byte(doc))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if rec.Format != FormatGPX || rec.Name != "Col loop" {
		t.Fatalf("unexpected recording header: %s %q", rec.Format, rec.Name)
	}
	if len(rec.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(rec.Samples))
	}
	second := rec.Samples[1]
	if *second.Altitude != 1005.5 || *second.Lat != 46.001 {
		t.Fatalf("unexpected point %+v", second)
	}
	if want := time.Date(2025, 1, 1, 10, 0, 1, 500_000_000, time.UTC); !second.Timestamp.Equal(want) {
		t.Fatalf("unexpected time %s", second.Timestamp)
	}
	if last := rec.Samples[2]; !last.Timestamp.IsZero() || last.Altitude != nil {
		t.Fatalf("expected bare point, got %+v", last)
	}
}

func TestDecodeRejectsUnknownFormat(t *testing.T) {
	_, err := Decode("notes.txt", []byte("hello"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	_, err = DecodeGPX(strings.NewReader(`<gpx version="1.1" xmlns="http://www.topografix.com/GPX/1/1"><trk><trkseg></trkseg></trk></gpx>`))
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}
}

func TestDecodeGPXIgnoresRoutePoints(t *testing.T) {
	const doc = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
	<rte>
		<name>Planned</name>
		<rtept lat="46.0" lon="7.0"><ele>400</ele></rtept>
		<rtept lat="46.1" lon="7.1"><ele>420</ele></rtept>
	</rte>
	<trk>
		<trkseg>
			<trkpt lat="46.0" lon="7.0"><time>2025-01-01T10:00:00Z</time></trkpt>
		</trkseg>
	</trk>
</gpx>`

	rec, err := DecodeGPX(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeGPX() error: %v", err)
	}
	if len(rec.Samples) != 1 || rec.Samples[0].Altitude != nil {
		t.Fatalf("expected only the track point, got %+v", rec.Samples)
	}
}

func TestDetectFormatSniffsFITHeader(t *testing.T) {
	format, err := DetectFormat("upload", buildTestFIT(t))
	if err != nil || format != FormatFIT {
		t.Fatalf("expected FIT, got %q (%v)", format, err)
	}
}

func buildTestFIT(t *testing.T) []byte {
	t.Helper()

	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	if err != nil {
		t.Fatalf("new fit file: %v", err)
	}
	activity, err := file.Activity()
	if err != nil {
		t.Fatalf("activity accessor: %v", err)
	}

	// Out of order on purpose.
	for _, offset := range []int{2, 0, 1} {
		record := fit.NewRecordMsg()
		record.Timestamp = fitStart.Add(time.Duration(offset) * time.Second)
		record.Altitude = uint16((120 + 500) * 5)
		record.Distance = uint32(offset * 800)
		if offset != 1 {
			record.Power = uint16(245 + offset)
		}
		activity.Records = append(activity.Records, record)
	}

	lap := fit.NewLapMsg()
	lap.StartTime = fitStart
	lap.Timestamp = fitStart.Add(2 * time.Second)
	lap.MaxPower = 310
	activity.Laps = append(activity.Laps, lap)

	var buf bytes.Buffer
	if err := fit.Encode(&buf, file, binary.LittleEndian); err != nil {
		t.Fatalf("encode fit: %v", err)
	}
	return buf.Bytes()
}
