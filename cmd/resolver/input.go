package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/address-resolver/app/models"
	"github.com/xuri/excelize/v2"
)

// readInputs loads addresses from path. Tabular files need a header row
// naming the address column; optional lat and lon columns become
// coordinates.
func readInputs(path, format, column string) ([]models.RawInput, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			format = "csv"
		case ".xlsx":
			format = "xlsx"
		default:
			format = "text"
		}
	}

	switch format {
	case "csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		cr := csv.NewReader(f)
		cr.FieldsPerRecord = -1
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		return inputsFromRows(rows, column)
	case "xlsx":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open xlsx: %w", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s has no sheets", path)
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("read xlsx: %w", err)
		}
		return inputsFromRows(rows, column)
	case "text":
		return readLines(path)
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
}

func readLines(path string) ([]models.RawInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []models.RawInput
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, models.RawInput{Text: line})
		}
	}
	return out, sc.Err()
}

func inputsFromRows(rows [][]string, column string) ([]models.RawInput, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	textCol, latCol, lonCol := -1, -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case strings.ToLower(column):
			textCol = i
		case "lat", "latitude":
			latCol = i
		case "lon", "lng", "longitude":
			lonCol = i
		}
	}
	if textCol < 0 {
		return nil, fmt.Errorf("column %q not found in header", column)
	}

	out := make([]models.RawInput, 0, len(rows)-1)
	for n, row := range rows[1:] {
		in := models.RawInput{Text: cell(row, textCol)}
		lat, lon := cell(row, latCol), cell(row, lonCol)
		if lat != "" && lon != "" {
			la, err1 := strconv.ParseFloat(lat, 64)
			lo, err2 := strconv.ParseFloat(lon, 64)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("row %d: bad coordinates %q,%q", n+2, lat, lon)
			}
			in.Coordinates = &models.GeoPoint{Lat: la, Lon: lo}
		}
		out = append(out, in)
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
