//go:build !js

package pipeline

import (
	"math"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

type canonicalParquetRow struct {
	TSISO         string  `parquet:"name=ts_iso, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ElapsedS      float64 `parquet:"name=elapsed_s, type=DOUBLE"`
	LapIndex      int32   `parquet:"name=lap_index, type=INT32"`
	LatitudeDeg   float64 `parquet:"name=latitude_deg, type=DOUBLE"`
	LongitudeDeg  float64 `parquet:"name=longitude_deg, type=DOUBLE"`
	SpeedMPS      float64 `parquet:"name=speed_mps, type=DOUBLE"`
	DistanceM     float64 `parquet:"name=distance_m, type=DOUBLE"`
	HRBPM         float64 `parquet:"name=hr_bpm, type=DOUBLE"`
	Cadence       float64 `parquet:"name=cadence, type=DOUBLE"`
	Calories      float64 `parquet:"name=calories, type=DOUBLE"`
	ValidHR       bool    `parquet:"name=valid_hr, type=BOOLEAN"`
	ValidPosition bool    `parquet:"name=valid_position, type=BOOLEAN"`
	RecordKind    string  `parquet:"name=record_kind, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	FileOffset    int64   `parquet:"name=file_offset, type=INT64"`
	RecordIndex   int64   `parquet:"name=record_index, type=INT64"`
}

func writeCanonicalParquet(path string, samples []CanonicalSample) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	if err := writeParquetRows(fw, samples); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func marshalCanonicalParquet(samples []CanonicalSample) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	if err := writeParquetRows(fw, samples); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

func writeParquetRows(fw source.ParquetFile, samples []CanonicalSample) error {
	pw, err := writer.NewParquetWriter(fw, new(canonicalParquetRow), 4)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, s := range samples {
		row := canonicalParquetRow{
			TSISO:         s.TSISO,
			ElapsedS:      s.ElapsedS,
			LapIndex:      int32(s.LapIndex),
			LatitudeDeg:   valueOrNaN(s.LatitudeDeg),
			LongitudeDeg:  valueOrNaN(s.LongitudeDeg),
			SpeedMPS:      valueOrNaN(s.SpeedMPS),
			DistanceM:     valueOrNaN(s.DistanceM),
			HRBPM:         valueOrNaN(s.HRBPM),
			Cadence:       valueOrNaN(s.Cadence),
			Calories:      valueOrNaN(s.Calories),
			ValidHR:       s.ValidHR,
			ValidPosition: s.ValidPosition,
			RecordKind:    s.RecordKind,
			FileOffset:    s.FileOffset,
			RecordIndex:   int64(s.RecordIndex),
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return err
		}
	}
	return pw.WriteStop()
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
