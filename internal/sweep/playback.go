package sweep

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ReplayLog feeds results from a JSONL log back into writer, announcing the
// sweep before the first row and ending it after the last. It returns the
// reconstructed result.
func ReplayLog(r io.Reader, writer ResultWriter) (*Result, error) {
	dec := json.NewDecoder(r)
	var runs []RunResult
	for {
		var row RunResult
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode result %d: %w", len(runs)+1, err)
		}
		runs = append(runs, row)
	}
	if len(runs) == 0 {
		return NewResult("", "", nil), nil
	}

	res := NewResult(runs[0].SweepID, runs[0].Sweep, runs)
	info := SweepInfo{ID: res.ID, Name: res.Name, ParamNames: res.ParamNames, Points: len(runs), StartedAt: res.StartedAt}
	if err := startSweep(writer, info); err != nil {
		return nil, err
	}
	if err := WriteResults(writer, runs); err != nil {
		return nil, err
	}
	if err := endSweep(writer, res); err != nil {
		return nil, err
	}
	return res, nil
}

// ReplayLogFile opens a file and replays its results.
func ReplayLogFile(path string, writer ResultWriter) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReplayLog(f, writer)
}
