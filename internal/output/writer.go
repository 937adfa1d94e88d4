// Package output writes a run's aggregate to disk, one directory per company.
package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"github.com/sells-group/fin-harvest/internal/model"
)

// TimestampLayout stamps every file written by one Save call.
const TimestampLayout = "20060102_150405"

// Supported formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Writer saves aggregates in the configured formats.
type Writer struct {
	formats []string
	now     func() time.Time
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// NewWriter creates a Writer. No formats means json and csv.
func NewWriter(formats []string, opts ...Option) *Writer {
	if len(formats) == 0 {
		formats = []string{FormatJSON, FormatCSV}
	}
	w := &Writer{formats: formats, now: time.Now}
	for _, o := range opts {
		o(w)
	}
	return w
}

var dirReplacer = strings.NewReplacer(" ", "_", "/", "_", `\`, "_")

// CompanyDir returns the directory name used for a company. Spaces and path
// separators become underscores.
func CompanyDir(company string) string {
	return dirReplacer.Replace(company)
}

// safeDir reports whether name stays inside the output root.
func safeDir(name string) bool {
	return name != "." && filepath.IsLocal(name)
}

// Save writes every company present in agg under root and returns the
// paths written, in order. A company's files share one timestamp; existing
// files are never overwritten.
func (w *Writer) Save(agg *model.Aggregate, root string) ([]string, error) {
	ts := w.now().Format(TimestampLayout)

	var paths []string
	for _, company := range agg.Companies() {
		name := CompanyDir(company)
		if !safeDir(name) {
			zap.L().Warn("skipping company with unsafe directory name", zap.String("company", company))
			continue
		}
		dir := filepath.Join(root, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paths, eris.Wrapf(err, "output: create dir for %s", company)
		}

		byCat := agg.ForCompany(company)
		written, err := w.saveCompany(dir, ts, byCat)
		paths = append(paths, written...)
		if err != nil {
			return paths, eris.Wrapf(err, "output: save %s", company)
		}
		zap.L().Info("results saved",
			zap.String("company", company),
			zap.String("dir", dir),
			zap.Int("files", len(written)),
		)
	}
	return paths, nil
}

func (w *Writer) saveCompany(dir, ts string, byCat map[model.Category][]model.CompanyCategoryResult) ([]string, error) {
	var paths []string

	if w.has(FormatJSON) {
		p, err := writeSnapshot(dir, ts, byCat)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}

	if w.has(FormatCSV) {
		for _, c := range model.AllCategories() {
			if len(byCat[c]) == 0 {
				continue
			}
			p, err := writeCSV(dir, ts, c, byCat[c])
			if err != nil {
				return paths, err
			}
			paths = append(paths, p)
		}
	}

	if w.has(FormatXLSX) {
		p, err := writeWorkbook(dir, ts, byCat)
		if err != nil {
			return paths, err
		}
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func (w *Writer) has(format string) bool {
	return slices.Contains(w.formats, format)
}

// writeSnapshot writes all four categories as one JSON object, keyed in
// category order, with '&', '<' and '>' left unescaped.
func writeSnapshot(dir, ts string, byCat map[model.Category][]model.CompanyCategoryResult) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, c := range model.AllCategories() {
		if i > 0 {
			buf.WriteByte(',')
		}
		rows := byCat[c]
		if rows == nil {
			rows = []model.CompanyCategoryResult{}
		}
		if err := enc.Encode(string(c)); err != nil {
			return "", eris.Wrap(err, "marshal snapshot")
		}
		buf.WriteByte(':')
		if err := enc.Encode(rows); err != nil {
			return "", eris.Wrap(err, "marshal snapshot")
		}
	}
	buf.WriteByte('}')

	path, err := create(dir, "raw_data_"+ts, ".json", pretty.Pretty(buf.Bytes()))
	if err != nil {
		return "", eris.Wrap(err, "write snapshot")
	}
	return path, nil
}

func writeCSV(dir, ts string, c model.Category, rows []model.CompanyCategoryResult) (string, error) {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return "", eris.Wrapf(err, "marshal %s csv", c)
	}
	path, err := create(dir, string(c)+"_"+ts, ".csv", data)
	if err != nil {
		return "", eris.Wrapf(err, "write %s csv", c)
	}
	return path, nil
}

var sheetHeader = []string{"company", "source", "url", "timestamp", "text_data"}

// writeWorkbook writes one sheet per non-empty category. It returns an
// empty path when there is nothing to write.
func writeWorkbook(dir, ts string, byCat map[model.Category][]model.CompanyCategoryResult) (string, error) {
	f := xlsx.NewFile()
	sheets := 0
	for _, c := range model.AllCategories() {
		rows := byCat[c]
		if len(rows) == 0 {
			continue
		}
		sheet, err := f.AddSheet(string(c))
		if err != nil {
			return "", eris.Wrapf(err, "add %s sheet", c)
		}
		addRow(sheet, sheetHeader)
		for _, r := range rows {
			text, _ := r.TextData.MarshalText()
			addRow(sheet, []string{r.Company, r.Source, r.URL, r.Timestamp.Format(time.RFC3339), string(text)})
		}
		sheets++
	}
	if sheets == 0 {
		return "", nil
	}

	path := uniquePath(dir, "harvest_"+ts, ".xlsx")
	if err := f.Save(path); err != nil {
		return "", eris.Wrap(err, "save workbook")
	}
	return path, nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// create writes data to a new file named base+ext in dir, adding a numeric
// suffix when that name is taken.
func create(dir, base, ext string, data []byte) (string, error) {
	for {
		path := uniquePath(dir, base, ext)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return "", err
		}
		return path, f.Close()
	}
}

func uniquePath(dir, base, ext string) string {
	path := filepath.Join(dir, base+ext)
	for i := 2; fileExists(path); i++ {
		path = filepath.Join(dir, base+"_"+strconv.Itoa(i)+ext)
	}
	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
