package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joshp123/xiqsync/internal/store"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// CSVHeader is the column order of CSV exports.
var CSVHeader = []string{"id", "hostname", "serial_number", "product_type", "connected", "location_id", "ssids"}

// ParseFormat accepts json, csv, yaml and yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (json, csv, yaml)", s)
	}
}

// Row is the flat export shape of a stored access point.
type Row struct {
	ID           int64    `json:"id" yaml:"id"`
	Hostname     *string  `json:"hostname" yaml:"hostname"`
	SerialNumber *string  `json:"serial_number" yaml:"serial_number"`
	ProductType  *string  `json:"product_type" yaml:"product_type"`
	Connected    bool     `json:"connected" yaml:"connected"`
	LocationID   *int64   `json:"location_id" yaml:"location_id"`
	SSIDs        []string `json:"ssids" yaml:"ssids"`
}

func Rows(records []store.Record) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		d := rec.Device
		ssids := rec.SSIDs
		if ssids == nil {
			ssids = []string{}
		}
		rows = append(rows, Row{
			ID:           d.ID,
			Hostname:     d.Hostname,
			SerialNumber: d.SerialNumber,
			ProductType:  d.ProductType,
			Connected:    d.Connected,
			LocationID:   d.LocationID,
			SSIDs:        ssids,
		})
	}
	return rows
}

// Write renders records to w in the given format.
func Write(w io.Writer, format Format, records []store.Record) error {
	rows := Rows(records)
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, rows)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func writeCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		location := ""
		if r.LocationID != nil {
			location = strconv.FormatInt(*r.LocationID, 10)
		}
		record := []string{
			strconv.FormatInt(r.ID, 10),
			deref(r.Hostname),
			deref(r.SerialNumber),
			deref(r.ProductType),
			strconv.FormatBool(r.Connected),
			location,
			strings.Join(r.SSIDs, ","),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
