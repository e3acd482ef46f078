// Package dataselect builds fdsnws-dataselect query URLs from builder form values.
package dataselect

import (
	"net/url"
	"strings"
)

// Param names, in the order they appear in a generated query.
var paramOrder = []string{
	"net", "sta", "loc", "cha",
	"starttime", "endtime",
	"quality", "minimumlength", "longestonly",
	"format", "nodata",
}

// Params are the builder form values. Empty values are left out of the query.
type Params struct {
	Network       string
	Station       string
	Location      string
	Channel       string
	StartTime     string
	EndTime       string
	Quality       string
	MinimumLength string
	LongestOnly   string
	Format        string
	NoData        string
}

// FromValues reads Params from a generic value lookup such as url.Values.Get or a
// form snapshot. Both short and long FDSN parameter names are accepted.
func FromValues(get func(string) string) Params {
	pick := func(names ...string) string {
		for _, n := range names {
			if v := strings.TrimSpace(get(n)); v != "" {
				return v
			}
		}
		return ""
	}
	return Params{
		Network:       pick("net", "network"),
		Station:       pick("sta", "station"),
		Location:      pick("loc", "location"),
		Channel:       pick("cha", "channel"),
		StartTime:     pick("starttime", "start"),
		EndTime:       pick("endtime", "end"),
		Quality:       pick("quality"),
		MinimumLength: pick("minimumlength"),
		LongestOnly:   pick("longestonly"),
		Format:        pick("format"),
		NoData:        pick("nodata"),
	}
}

func (p Params) values() map[string]string {
	return map[string]string{
		"net":           p.Network,
		"sta":           p.Station,
		"loc":           p.Location,
		"cha":           p.Channel,
		"starttime":     p.StartTime,
		"endtime":       p.EndTime,
		"quality":       p.Quality,
		"minimumlength": p.MinimumLength,
		"longestonly":   p.LongestOnly,
		"format":        p.Format,
		"nodata":        p.NoData,
	}
}

// Encode returns the query string with only non-empty params, in stable order.
func (p Params) Encode() string {
	vals := p.values()
	var b strings.Builder
	for _, k := range paramOrder {
		v := strings.TrimSpace(vals[k])
		if v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}
	return b.String()
}

// QueryURL returns "<base>/query?..." for the dataselect service at base.
func (p Params) QueryURL(base string) string {
	u := strings.TrimRight(base, "/") + "/query"
	if q := p.Encode(); q != "" {
		u += "?" + q
	}
	return u
}
