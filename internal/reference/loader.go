package reference

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/address-resolver/app/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

//go:embed data/reference.csv data/known_locations.yaml
var dataFS embed.FS

// columns in dataset order
var columns = []string{
	"province_code", "province_name", "district_code", "district_name",
	"neighborhood_code", "neighborhood_name", "latitude", "longitude", "postal_code", "aliases",
}

// Load builds the index from path (CSV or XLSX), or from the embedded
// dataset when path is empty. The known-location table is always embedded.
func Load(path string, logger *zap.Logger) (*Index, error) {
	var (
		units []models.ReferenceUnit
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case "":
		if path != "" {
			return nil, fmt.Errorf("reference file %s has no extension", path)
		}
		f, ferr := dataFS.Open("data/reference.csv")
		if ferr != nil {
			return nil, ferr
		}
		defer f.Close()
		units, err = ReadCSV(f)
	case ".csv":
		f, ferr := os.Open(path)
		if ferr != nil {
			return nil, fmt.Errorf("open reference: %w", ferr)
		}
		defer f.Close()
		units, err = ReadCSV(f)
	case ".xlsx":
		units, err = ReadXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported reference format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	b, err := dataFS.ReadFile("data/known_locations.yaml")
	if err != nil {
		return nil, err
	}
	known, err := ParseKnownLocations(b)
	if err != nil {
		return nil, err
	}

	ix, err := NewIndex(units, known)
	if err != nil {
		return nil, err
	}
	stats := ix.Stats()
	logger.Info("Reference hierarchy loaded",
		zap.String("source", sourceName(path)),
		zap.Int("provinces", stats.Provinces),
		zap.Int("districts", stats.Districts),
		zap.Int("neighborhoods", stats.Neighborhoods),
		zap.String("version", stats.Version))
	return ix, nil
}

func sourceName(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

// ReadCSV parses dataset rows. The header row is required; columns are
// matched by name so extra columns are ignored.
func ReadCSV(r io.Reader) ([]models.ReferenceUnit, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read reference csv: %w", err)
	}
	return parseRows(rows)
}

// ReadXLSX parses dataset rows from the first sheet of an XLSX workbook.
func ReadXLSX(path string) ([]models.ReferenceUnit, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open reference xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("reference xlsx %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read reference xlsx: %w", err)
	}
	return parseRows(rows)
}

// WriteXLSX exports units to an XLSX workbook at path.
func WriteXLSX(path string, units []models.ReferenceUnit) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, u := range units {
		row := []interface{}{
			u.ProvinceCode, u.ProvinceName, u.DistrictCode, u.DistrictName,
			u.NeighborhoodCode, u.NeighborhoodName, floatCell(u.Latitude), floatCell(u.Longitude),
			u.PostalCode, strings.Join(u.Aliases, "|"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseRows(rows [][]string) ([]models.ReferenceUnit, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("reference dataset has no header")
	}
	pos := make(map[string]int)
	for i, h := range rows[0] {
		pos[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"province_name", "district_name", "neighborhood_name"} {
		if _, ok := pos[required]; !ok {
			return nil, fmt.Errorf("reference dataset missing column %q", required)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := pos[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	units := make([]models.ReferenceUnit, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if len(row) == 0 || strings.Join(row, "") == "" {
			continue
		}
		u := models.ReferenceUnit{
			ProvinceCode:     cell(row, "province_code"),
			ProvinceName:     cell(row, "province_name"),
			DistrictCode:     cell(row, "district_code"),
			DistrictName:     cell(row, "district_name"),
			NeighborhoodCode: cell(row, "neighborhood_code"),
			NeighborhoodName: cell(row, "neighborhood_name"),
			PostalCode:       cell(row, "postal_code"),
		}
		lat, lon := cell(row, "latitude"), cell(row, "longitude")
		if lat != "" && lon != "" {
			la, err1 := strconv.ParseFloat(lat, 64)
			lo, err2 := strconv.ParseFloat(lon, 64)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("reference row %d: bad coordinates %q,%q", n+2, lat, lon)
			}
			u.Latitude, u.Longitude = &la, &lo
		}
		if a := cell(row, "aliases"); a != "" {
			for _, alias := range strings.Split(a, "|") {
				if alias = strings.TrimSpace(alias); alias != "" {
					u.Aliases = append(u.Aliases, alias)
				}
			}
		}
		units = append(units, u)
	}
	return units, nil
}
