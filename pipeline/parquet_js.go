//go:build js

package pipeline

import "errors"

var errParquetUnavailable = errors.New("parquet output is not available in js builds; use format=csv")

func writeCanonicalParquet(string, []CanonicalSample) error {
	return errParquetUnavailable
}

func marshalCanonicalParquet([]CanonicalSample) ([]byte, error) {
	return nil, errParquetUnavailable
}
