package usecase

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"adperf/internal/domain"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// outcome of one parse call
type ParseReport struct {
	TotalRows      int                  `json:"total_rows"`
	Accepted       int                  `json:"accepted"`
	Rejected       []domain.RowRejected `json:"rejected,omitempty"`
	CoercedValues  int                  `json:"coerced_values"`
	UnknownColumns []string             `json:"unknown_columns,omitempty"`
	Delimiter      string               `json:"delimiter"`
}

type ParseResult struct {
	Records []domain.PerformanceRecord
	Report  ParseReport
}

type rowBuilder struct {
	rec     domain.PerformanceRecord
	coerced int
}

type columnSetter func(b *rowBuilder, raw string)

// export column names, matched case-insensitively after trimming
var columns = map[string]columnSetter{
	"campaign name": func(b *rowBuilder, v string) { b.rec.CampaignName = cleanString(v) },
	"campaign id":   func(b *rowBuilder, v string) { b.rec.CampaignID = cleanString(v) },
	"ad set name":   func(b *rowBuilder, v string) { b.rec.AdSetName = cleanString(v) },
	"ad set id":     func(b *rowBuilder, v string) { b.rec.AdSetID = cleanString(v) },
	"ad name":       func(b *rowBuilder, v string) { b.rec.AdName = cleanString(v) },
	"ad id":         func(b *rowBuilder, v string) { b.rec.AdID = cleanString(v) },

	"placement":       func(b *rowBuilder, v string) { b.rec.Placement = cleanString(v) },
	"platform":        func(b *rowBuilder, v string) { b.rec.Platform = cleanString(v) },
	"ad delivery":     func(b *rowBuilder, v string) { b.rec.DeliveryStatus = cleanString(v) },
	"delivery status": func(b *rowBuilder, v string) { b.rec.DeliveryStatus = cleanString(v) },
	"delivery level":  func(b *rowBuilder, v string) { b.rec.DeliveryLevel = cleanString(v) },

	"day": func(b *rowBuilder, v string) { b.rec.Day = cleanDate(v) },

	"reach":       func(b *rowBuilder, v string) { b.rec.Reach = b.integer(v) },
	"impressions": func(b *rowBuilder, v string) { b.rec.Impressions = b.integer(v) },
	"frequency":   func(b *rowBuilder, v string) { b.rec.Frequency = b.number(v) },
	"results":     func(b *rowBuilder, v string) { b.rec.Results = b.number(v) },

	"amount spent (usd)": func(b *rowBuilder, v string) { b.rec.AmountSpent = b.number(v) },
	"amount spent":       func(b *rowBuilder, v string) { b.rec.AmountSpent = b.number(v) },

	"cost per result":                    func(b *rowBuilder, v string) { b.rec.CostPerResult = b.number(v) },
	"cost per results":                   func(b *rowBuilder, v string) { b.rec.CostPerResult = b.number(v) },
	"purchase roas (return on ad spend)": func(b *rowBuilder, v string) { b.rec.PurchaseRoas = b.number(v) },
	"purchase roas":                      func(b *rowBuilder, v string) { b.rec.PurchaseRoas = b.number(v) },
	"ctr (all)":                          func(b *rowBuilder, v string) { b.rec.CtrAll = b.number(v) },
	"result rate":                        func(b *rowBuilder, v string) { b.rec.ResultRate = b.number(v) },

	"starts":           func(b *rowBuilder, v string) { b.rec.Starts = cleanDate(v) },
	"ends":             func(b *rowBuilder, v string) { b.rec.Ends = cleanDate(v) },
	"reporting starts": func(b *rowBuilder, v string) { b.rec.ReportingStarts = cleanDate(v) },
	"reporting ends":   func(b *rowBuilder, v string) { b.rec.ReportingEnds = cleanDate(v) },
}

var numericReplacer = strings.NewReplacer(
	",", "",
	"$", "",
	"€", "",
	"£", "",
	"¥", "",
	"USD", "",
	"%", "",
	" ", "",
)

var dateFormats = []string{
	domain.DayLayout, // YYYY-MM-DD
	"2006/01/02",     // YYYY/MM/DD
	"01/02/2006",     // MM/DD/YYYY
	time.RFC3339,     // 2006-01-02T15:04:05Z07:00
}

// ParseString parses an in-memory export.
func ParseString(text string) (ParseResult, error) {
	return Parse(strings.NewReader(text))
}

// Parse reads a delimited export with a header row into records. Rows missing
// an identity field are dropped and reported; only undecodable input fails.
func Parse(r io.Reader) (ParseResult, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	raw, err := io.ReadAll(decoded)
	if err != nil {
		return ParseResult{}, &domain.MalformedInputError{Err: err}
	}

	text := string(raw)
	if strings.TrimSpace(text) == "" {
		return ParseResult{}, &domain.MalformedInputError{Err: domain.ErrNoHeader}
	}

	delimiter := sniffDelimiter(text)
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = domain.ErrNoHeader
		}
		return ParseResult{}, &domain.MalformedInputError{Err: err}
	}

	setters := make([]columnSetter, len(header))
	report := ParseReport{Delimiter: string(delimiter)}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		setter, ok := columns[strings.ToLower(name)]
		if !ok {
			if name != "" {
				report.UnknownColumns = append(report.UnknownColumns, name)
			}
			continue
		}
		setters[i] = setter
	}

	var records []domain.PerformanceRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ParseResult{}, &domain.MalformedInputError{Err: err}
		}
		line, _ := reader.FieldPos(0)
		report.TotalRows++

		b := &rowBuilder{}
		for i, value := range row {
			if i < len(setters) && setters[i] != nil {
				setters[i](b, value)
			}
		}
		report.CoercedValues += b.coerced

		if rejection, ok := validateRow(b.rec, line); !ok {
			report.Rejected = append(report.Rejected, rejection)
			continue
		}
		records = append(records, b.rec)
	}

	report.Accepted = len(records)
	return ParseResult{Records: records, Report: report}, nil
}

func validateRow(r domain.PerformanceRecord, line int) (domain.RowRejected, bool) {
	switch {
	case r.CampaignName == "":
		return domain.RowRejected{Line: line, Field: "Campaign name", Reason: "missing campaign name"}, false
	case r.AdName == "":
		return domain.RowRejected{Line: line, Field: "Ad name", Reason: "missing ad name"}, false
	case r.CampaignID == "":
		return domain.RowRejected{Line: line, Field: "Campaign ID", Reason: "missing campaign id"}, false
	}
	return domain.RowRejected{}, true
}

// sniffDelimiter picks the most frequent of comma, tab and semicolon on the
// header line, defaulting to comma.
func sniffDelimiter(text string) rune {
	header := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		header = text[:i]
	}
	best, bestCount := ',', strings.Count(header, ",")
	for _, d := range []rune{'\t', ';'} {
		if n := strings.Count(header, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func cleanString(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if first == last && (first == '"' || first == '\'') {
			v = strings.TrimSpace(v[1 : len(v)-1])
		}
	}
	return v
}

func cleanDate(v string) string {
	v = cleanString(v)
	if v == "" {
		return ""
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, v); err == nil {
			return t.Format(domain.DayLayout)
		}
	}
	return v
}

// number coerces unparsable values to 0 and counts them.
func (b *rowBuilder) number(v string) float64 {
	s := numericReplacer.Replace(cleanString(v))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	// export metrics are never negative
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		b.coerced++
		return 0
	}
	return f
}

func (b *rowBuilder) integer(v string) int64 {
	return int64(math.Round(b.number(v)))
}
