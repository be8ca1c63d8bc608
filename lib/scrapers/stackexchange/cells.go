package stackexchange

import (
	"net/url"
	"strings"
	"time"

	"spotdetector/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// machine-readable form carried by date spans, e.g. "2022-04-10 23:30:16Z"
const historyDateLayout = "2006-01-02 15:04:05Z"

type dateClass string

const (
	dateHistory      dateClass = "history-date"
	dateRelativetime dateClass = "relativetime"
)

func cellText(sel *goquery.Selection) string {
	return htmlutil.CleanText(sel.Text())
}

// cellDate reads the machine-readable title attribute off the date span
// inside a cell. The human rendering ("yesterday", "Apr 10") is never
// consulted.
func cellDate(cell *goquery.Selection, class dateClass) (time.Time, bool) {
	title := cell.Find("span." + string(class)).First().AttrOr("title", "")
	if title == "" {
		return time.Time{}, false
	}
	date, err := time.Parse(historyDateLayout, title)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// userIDFromHref pulls the numeric id out of a /users/<id>/<slug> profile
// link.
func userIDFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "users" {
		return ""
	}
	return parts[1]
}

// cellIdentities resolves every identity a cell names: one id per profile
// link, or the cell's trimmed text when the account link is gone (deleted
// accounts render as bare "userNNN" text).
func cellIdentities(cell *goquery.Selection) []string {
	var ids []string
	cell.Find("a").Each(func(_ int, a *goquery.Selection) {
		id := userIDFromHref(a.AttrOr("href", ""))
		if id != "" {
			ids = append(ids, id)
		}
	})
	if len(ids) == 0 {
		if text := cellText(cell); text != "" {
			ids = append(ids, text)
		}
	}
	return ids
}

func hasModFlair(cell *goquery.Selection) bool {
	return cell.Find(".mod-flair").Length() > 0
}

// placeholderIdentity reports whether an identity is the "userNNN" display
// text a removed account leaves behind, as opposed to a numeric profile id.
func placeholderIdentity(id string) bool {
	return strings.HasPrefix(id, "user")
}
