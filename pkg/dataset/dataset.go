// Package dataset parses uploaded interaction and item text files.
//
// Both formats are comma-separated with a header row, which is skipped:
//
//	user,item,weight        interaction file; weight is optional and defaults to 1
//	id,title,description    item text file; extra columns are folded into the description
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andrew/hybrid-recsys/pkg/core"
	"github.com/andrew/hybrid-recsys/pkg/models"
)

// CollectionName derives a collection name from an uploaded file name by
// dropping the directory and the last extension: "data/jobs.v2.csv" -> "jobs.v2".
func CollectionName(filename string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == "/" {
		return "", core.Validation("collection name", "", "", fmt.Errorf("cannot derive a collection name from %q", filename))
	}
	return base, nil
}

// ReadInteractions parses an interaction file
func ReadInteractions(r io.Reader) ([]models.Interaction, error) {
	const op = "read interactions"

	var out []models.Interaction
	err := readRows(r, func(line int, row []string) error {
		if len(row) < 2 {
			return fmt.Errorf("line %d: want user,item[,weight], got %d columns", line, len(row))
		}
		user, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid user id %q", line, row[0])
		}
		item := models.ItemID(strings.TrimSpace(row[1]))
		if _, err := item.PointID(); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		weight := 1.0
		if len(row) > 2 && strings.TrimSpace(row[2]) != "" {
			weight, err = strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
			if err != nil {
				return fmt.Errorf("line %d: invalid weight %q", line, row[2])
			}
		}
		out = append(out, models.Interaction{UserID: user, ItemID: item, Weight: weight})
		return nil
	})
	if err != nil {
		return nil, core.Validation(op, "", "", err)
	}
	return out, nil
}

// ReadItems parses an item text file. Titles and descriptions are kept raw;
// cleaning happens when payloads and embedding inputs are built.
func ReadItems(r io.Reader) ([]models.ItemRecord, error) {
	const op = "read items"

	var out []models.ItemRecord
	err := readRows(r, func(line int, row []string) error {
		if len(row) < 3 {
			return fmt.Errorf("line %d: want id,title,description, got %d columns", line, len(row))
		}
		id := models.ItemID(strings.TrimSpace(row[0]))
		if _, err := id.PointID(); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, models.ItemRecord{
			ID:          id,
			Title:       row[1],
			Description: strings.Join(row[2:], ","),
		})
		return nil
	})
	if err != nil {
		return nil, core.Validation(op, "", "", err)
	}
	return out, nil
}

// readRows calls fn for every non-blank row after the header
func readRows(r io.Reader, fn func(line int, row []string) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header := true
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("malformed csv: %w", err)
		}
		if header {
			header = false
			continue
		}
		if blank(row) {
			continue
		}
		line, _ := cr.FieldPos(0)
		if err := fn(line, row); err != nil {
			return err
		}
	}
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
