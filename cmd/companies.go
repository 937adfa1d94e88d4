package main

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// companyRow is one row of a companies CSV file.
type companyRow struct {
	Name string `csv:"name"`
}

// companyList is the YAML companies file: either a bare list or a
// "companies:" key.
type companyList struct {
	Companies []string `yaml:"companies"`
}

// loadCompanies reads company names from a .txt (one per line, # comments),
// .csv (a "name" column) or .yaml/.yml file. Blank and duplicate names are
// dropped; order is preserved.
func loadCompanies(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read companies file %s", path)
	}

	var names []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		var rows []companyRow
		if err := csvutil.Unmarshal(data, &rows); err != nil {
			return nil, eris.Wrapf(err, "parse companies csv %s", path)
		}
		for _, r := range rows {
			names = append(names, r.Name)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &names); err != nil {
			var list companyList
			if err := yaml.Unmarshal(data, &list); err != nil {
				return nil, eris.Wrapf(err, "parse companies yaml %s", path)
			}
			names = list.Companies
		}
	default:
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if strings.HasPrefix(line, "#") {
				continue
			}
			names = append(names, line)
		}
		if err := sc.Err(); err != nil {
			return nil, eris.Wrapf(err, "scan companies file %s", path)
		}
	}
	return normalizeCompanies(names), nil
}

// normalizeCompanies trims names and drops blanks and repeats.
func normalizeCompanies(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		n = strings.Join(strings.Fields(n), " ")
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// resolveCompanies picks the company list for a run: positional arguments,
// then the --file list, then the configured defaults.
func resolveCompanies(args []string, file string, defaults []string) ([]string, error) {
	var names []string
	names = append(names, args...)
	if file != "" {
		fromFile, err := loadCompanies(file)
		if err != nil {
			return nil, err
		}
		names = append(names, fromFile...)
	}
	if len(names) == 0 {
		names = defaults
	}
	names = normalizeCompanies(names)
	if len(names) == 0 {
		return nil, eris.New("no companies to harvest")
	}
	return names, nil
}
