package sectoralarm

import (
	"bytes"
	"fmt"
	"sectoralarm/pkg/htmlutil"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const tokenFieldName = "__RequestVerificationToken"

// the status panel marks its fields with classes like "status_user"
const statusClassPrefix = "status_"

type statusKey int

const (
	statusKeyEvent statusKey = iota
	statusKeyTime
	statusKeyUser
)

// both spellings have been used by the portal over time
var statusKeys = map[string]statusKey{
	"status":    statusKeyEvent,
	"event":     statusKeyEvent,
	"time":      statusKeyTime,
	"timestamp": statusKeyTime,
	"user":      statusKeyUser,
}

func parseDocument(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewBuffer(body))
}

// extractToken returns the value of the anti-forgery field of the first form
// that carries one.
func extractToken(doc *goquery.Document) (string, error) {
	token := ""
	doc.Find("input").EachWithBreak(func(_ int, input *goquery.Selection) bool {
		name, _ := input.Attr("name")
		if name != tokenFieldName {
			return true
		}
		token = input.AttrOr("value", "")
		return false
	})
	if token == "" {
		return "", ErrTokenNotFound
	}
	return token, nil
}

// extractStatusPanel collects the text of every element whose class starts
// with statusClassPrefix, keyed by the class suffix. Unknown suffixes are
// returned as errors next to the fields that were recognized.
func extractStatusPanel(doc *goquery.Document) (map[statusKey]string, []error) {
	fields := map[statusKey]string{}
	var problems []error

	doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		for _, class := range strings.Fields(s.AttrOr("class", "")) {
			suffix, found := strings.CutPrefix(class, statusClassPrefix)
			if !found {
				continue
			}
			key, known := statusKeys[suffix]
			if !known {
				problems = append(problems, fmt.Errorf("%w: %q", ErrUnknownStatusKey, suffix))
				continue
			}
			fields[key] = htmlutil.NodeText(s.Nodes[0])
		}
	})

	return fields, problems
}

func isLoadMoreRow(row *goquery.Selection) bool {
	classes := strings.ToLower(row.AttrOr("class", ""))
	row.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		classes += " " + strings.ToLower(s.AttrOr("class", ""))
	})
	for _, marker := range []string{"load-more", "loadmore", "load_more"} {
		if strings.Contains(classes, marker) {
			return true
		}
	}
	return false
}

// extractLogRows returns the text of the data cells of every event row of
// the log table in document order. Header rows and the "load more" footer
// are left out, as are the rows of outer tables that only lay out the page.
// Rows are otherwise kept whatever their cell count.
func extractLogRows(doc *goquery.Document) [][]string {
	rows := doc.Find("table tbody tr")
	if rows.Length() == 0 {
		rows = doc.Find("table tr")
	}

	var out [][]string
	rows.Each(func(_ int, row *goquery.Selection) {
		if row.ParentsFiltered("thead, tfoot").Length() > 0 {
			return
		}
		if row.ChildrenFiltered("th").Length() > 0 {
			return
		}
		if isLoadMoreRow(row) {
			return
		}
		// rows of layout tables wrapping the log table
		if row.ChildrenFiltered("td").Find("table").Length() > 0 {
			return
		}

		cells := []string{}
		row.ChildrenFiltered("td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, htmlutil.NodeText(cell.Nodes[0]))
		})
		out = append(out, cells)
	})
	return out
}
