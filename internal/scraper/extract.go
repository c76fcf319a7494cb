package scraper

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/talonjobs/talon/internal/model"
)

var (
	jobIDRegex      = regexp.MustCompile(`JobID=(\d+)`)
	postedDateRegex = regexp.MustCompile(`Posted:\s*(.+?)(?:\s*-|$)`)
)

// listingLink is one job discovered on a search results page.
type listingLink struct {
	url   string
	jobID string
}

// extractListingLinks pulls job detail links out of a search results page.
// Listings appear as anchors inside h2.with-badge headings; the job ID is
// embedded in the link's JobID query parameter. Anchors without a parseable
// ID are skipped.
func extractListingLinks(doc *html.Node, base *url.URL) []listingLink {
	var links []listingLink
	for _, h2 := range findAll(doc, matchTagClass("h2", "with-badge")) {
		for _, a := range findAll(h2, matchTag("a")) {
			href := attrVal(a, "href")
			if href == "" {
				continue
			}
			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			abs := base.ResolveReference(ref).String()
			m := jobIDRegex.FindStringSubmatch(abs)
			if m == nil {
				continue
			}
			links = append(links, listingLink{url: abs, jobID: m[1]})
		}
	}
	return links
}

// extractDetailFields parses a job detail page into a Job. Selectors are
// best-effort: a missing field falls back to its sentinel value rather than
// failing the record.
func extractDetailFields(doc *html.Node, pageURL, jobID string) model.Job {
	job := model.Job{JobID: jobID, URL: pageURL}

	if n := findFirst(doc, matchTag("h1")); n != nil {
		job.Title = collapse(textContent(n))
	}
	if n := findFirst(doc, matchTagClass("span", "capital-letter")); n != nil {
		job.Company = collapse(textContent(n))
	}
	if n := findFirst(doc, matchTagClass("small", "wrappable")); n != nil {
		job.Location = collapse(textContent(n))
	}

	for _, match := range []func(*html.Node) bool{
		matchID("TrackingJobBody"),
		matchTagClass("div", "JobViewJobBody"),
		matchTagClass("div", "job-view-description"),
	} {
		if n := findFirst(doc, match); n != nil {
			job.Description = collapse(textContent(n))
			break
		}
	}

	job.Salary = extractSalary(doc)
	job.PostedDate = extractPostedDate(doc)

	applySentinels(&job)
	return job
}

// extractSalary finds the dd paired with a dt labelled "Salary" inside the
// job details definition list.
func extractSalary(doc *html.Node) string {
	for _, span := range findAll(doc, matchTag("span")) {
		dt := findFirst(span, matchTag("dt"))
		if dt == nil || !strings.Contains(textContent(dt), "Salary") {
			continue
		}
		if dd := findFirst(span, matchTag("dd")); dd != nil {
			return collapse(textContent(dd))
		}
	}
	return ""
}

// extractPostedDate finds the "Posted:" paragraph and normalizes its date,
// falling back to the posting-date span used by the alternate page layout.
func extractPostedDate(doc *html.Node) string {
	for _, p := range findAll(doc, matchTag("p")) {
		text := collapse(textContent(p))
		if !strings.Contains(text, "Posted:") {
			continue
		}
		if m := postedDateRegex.FindStringSubmatch(text); m != nil {
			return normalizePostedDate(strings.TrimSpace(m[1]))
		}
	}
	if n := findFirst(doc, matchTagClass("span", "job-view-posting-date")); n != nil {
		return collapse(textContent(n))
	}
	return ""
}

// normalizePostedDate converts the board's M/D/YYYY format to YYYY-MM-DD.
// Unrecognized formats pass through unchanged.
func normalizePostedDate(raw string) string {
	t, err := time.Parse("1/2/2006", raw)
	if err != nil {
		return raw
	}
	return t.Format("2006-01-02")
}

func applySentinels(job *model.Job) {
	if job.Title == "" {
		job.Title = model.UnknownTitle
	}
	if job.Company == "" {
		job.Company = model.UnknownCompany
	}
	if job.Location == "" {
		job.Location = model.UnknownLocation
	}
	if job.Description == "" {
		job.Description = model.NoDescription
	}
	if job.Salary == "" {
		job.Salary = model.SalaryNotSpecified
	}
	if job.PostedDate == "" {
		job.PostedDate = model.UnknownDate
	}
}

// --- node helpers ---

func matchTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

func matchTagClass(tag, class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag && hasClass(n, class)
	}
}

func matchID(id string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && attrVal(n, "id") == id
	}
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrVal(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// collapse trims and collapses runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
