//go:build !js

package codec

import (
	"bytes"
	"fmt"
	"time"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/lucasjlepore/ridestats"
)

const parallelism = 4

var magic = []byte("PAR1")

type sampleRow struct {
	Timestamp *int64   `parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL"`
	Power     *int32   `parquet:"name=power, type=INT32, repetitiontype=OPTIONAL"`
	Altitude  *float64 `parquet:"name=altitude, type=DOUBLE, repetitiontype=OPTIONAL"`
	Distance  *float64 `parquet:"name=distance, type=DOUBLE, repetitiontype=OPTIONAL"`
	Speed     *float64 `parquet:"name=speed, type=DOUBLE, repetitiontype=OPTIONAL"`
	Lat       *float64 `parquet:"name=lat, type=DOUBLE, repetitiontype=OPTIONAL"`
	Long      *float64 `parquet:"name=long, type=DOUBLE, repetitiontype=OPTIONAL"`
}

type lapRow struct {
	StartTime        *int64   `parquet:"name=start_time, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL"`
	Timestamp        *int64   `parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL"`
	TotalDistance    *float64 `parquet:"name=total_distance, type=DOUBLE, repetitiontype=OPTIONAL"`
	TotalElapsedTime *float64 `parquet:"name=total_elapsed_time, type=DOUBLE, repetitiontype=OPTIONAL"`
	TotalTimerTime   *float64 `parquet:"name=total_timer_time, type=DOUBLE, repetitiontype=OPTIONAL"`
	AvgSpeed         *float64 `parquet:"name=avg_speed, type=DOUBLE, repetitiontype=OPTIONAL"`
	MaxSpeed         *float64 `parquet:"name=max_speed, type=DOUBLE, repetitiontype=OPTIONAL"`
	TotalAscent      *int32   `parquet:"name=total_ascent, type=INT32, repetitiontype=OPTIONAL"`
	TotalDescent     *int32   `parquet:"name=total_descent, type=INT32, repetitiontype=OPTIONAL"`
	MaxPower         *int32   `parquet:"name=max_power, type=INT32, repetitiontype=OPTIONAL"`
	AvgPower         *int32   `parquet:"name=avg_power, type=INT32, repetitiontype=OPTIONAL"`
}

// EncodeSamples serializes samples into a SNAPPY-compressed parquet blob.
func EncodeSamples(samples ridestats.Samples) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	if err := writeSamples(fw, samples); err != nil {
		return nil, fmt.Errorf("encode samples: %w", err)
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

// DecodeSamples reverses EncodeSamples.
func DecodeSamples(data []byte) (ridestats.Samples, error) {
	rows, err := readRows[sampleRow](data)
	if err != nil {
		return nil, err
	}
	out := make(ridestats.Samples, len(rows))
	for i, r := range rows {
		out[i] = ridestats.Sample{
			Timestamp: fromMicros(r.Timestamp),
			Power:     intFrom32(r.Power),
			Altitude:  r.Altitude,
			Distance:  r.Distance,
			Speed:     r.Speed,
			Lat:       r.Lat,
			Long:      r.Long,
		}
	}
	return out, nil
}

// EncodeLaps serializes a lap boundary table.
func EncodeLaps(laps []ridestats.LapBoundary) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(lapRow), parallelism)
	if err != nil {
		return nil, fmt.Errorf("encode laps: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, lap := range laps {
		row := lapRow{
			StartTime:        toMicros(lap.Start),
			Timestamp:        toMicros(lap.End),
			TotalDistance:    lap.TotalDistance,
			TotalElapsedTime: lap.TotalElapsedTime,
			TotalTimerTime:   lap.TotalTimerTime,
			AvgSpeed:         lap.AvgSpeed,
			MaxSpeed:         lap.MaxSpeed,
			TotalAscent:      int32From(lap.TotalAscent),
			TotalDescent:     int32From(lap.TotalDescent),
			MaxPower:         int32From(lap.MaxPower),
			AvgPower:         int32From(lap.AvgPower),
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return nil, fmt.Errorf("encode laps: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("encode laps: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

// DecodeLaps reverses EncodeLaps.
func DecodeLaps(data []byte) ([]ridestats.LapBoundary, error) {
	rows, err := readRows[lapRow](data)
	if err != nil {
		return nil, err
	}
	out := make([]ridestats.LapBoundary, len(rows))
	for i, r := range rows {
		out[i] = ridestats.LapBoundary{
			Start:            timePtr(r.StartTime),
			End:              timePtr(r.Timestamp),
			TotalDistance:    r.TotalDistance,
			TotalElapsedTime: r.TotalElapsedTime,
			TotalTimerTime:   r.TotalTimerTime,
			AvgSpeed:         r.AvgSpeed,
			MaxSpeed:         r.MaxSpeed,
			TotalAscent:      intFrom32(r.TotalAscent),
			TotalDescent:     intFrom32(r.TotalDescent),
			MaxPower:         intFrom32(r.MaxPower),
			AvgPower:         intFrom32(r.AvgPower),
		}
	}
	return out, nil
}

func writeSamples(fw source.ParquetFile, samples ridestats.Samples) error {
	pw, err := writer.NewParquetWriter(fw, new(sampleRow), parallelism)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, s := range samples {
		var ts *int64
		if !s.Timestamp.IsZero() {
			ts = toMicros(&s.Timestamp)
		}
		row := sampleRow{
			Timestamp: ts,
			Power:     int32From(s.Power),
			Altitude:  s.Altitude,
			Distance:  s.Distance,
			Speed:     s.Speed,
			Lat:       s.Lat,
			Long:      s.Long,
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return err
	}
	return fw.Close()
}

// readRows decodes every row of a parquet blob. parquet-go panics on some
// truncated footers, so panics are reported as ErrMalformed.
func readRows[T any](data []byte) (rows []T, err error) {
	if len(data) < 2*len(magic)+4 || !bytes.HasPrefix(data, magic) || !bytes.HasSuffix(data, magic) {
		return nil, fmt.Errorf("%w: missing parquet magic", ErrMalformed)
	}
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	fr := parquetbuffer.NewBufferFileFromBytes(data)
	pr, err := reader.NewParquetReader(fr, new(T), parallelism)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer pr.ReadStop()

	rows = make([]T, int(pr.GetNumRows()))
	if len(rows) == 0 {
		return rows, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return rows, nil
}

func toMicros(t *time.Time) *int64 {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UnixMicro()
	return &v
}

func fromMicros(v *int64) time.Time {
	if v == nil {
		return time.Time{}
	}
	return time.UnixMicro(*v).UTC()
}

func timePtr(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := fromMicros(v)
	return &t
}

func int32From(v *int) *int32 {
	if v == nil {
		return nil
	}
	x := int32(*v)
	return &x
}

func intFrom32(v *int32) *int {
	if v == nil {
		return nil
	}
	x := int(*v)
	return &x
}
