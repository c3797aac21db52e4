package model

import "fmt"

// ForEachRecord calls fn with the frames of each record in ds whose index
// passes keep. A nil keep visits every record.
func ForEachRecord(ds Dataset, keep func(i int) bool, fn func(frames [][]float32) error) error {
	for i := 0; i < ds.Len(); i++ {
		if keep != nil && !keep(i) {
			continue
		}
		rec, err := ds.At(i)
		if err != nil {
			return fmt.Errorf("model: record %d: %w", i, err)
		}
		if err := fn(rec.Frames); err != nil {
			return err
		}
	}
	return nil
}
