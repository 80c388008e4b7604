// Package useragent derives a coarse browser, operating system and device
// class from a User-Agent header. It is deliberately a substring classifier,
// not a full parser: anything it does not recognise maps to Other.
package useragent

import "strings"

const (
	Unknown = "Unknown"
	Other   = "Other"

	Desktop = "Desktop"
	Mobile  = "Mobile"
	Tablet  = "Tablet"
)

// Profile is the classification result for one User-Agent string.
type Profile struct {
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"device_type"`
}

type rule struct {
	label   string
	needles []string
}

// Order matters: Edge and Opera embed "Chrome", Chrome embeds "Safari",
// Android embeds "Linux" and iOS embeds "Mac OS".
var browsers = []rule{
	{"Edge", []string{"Edg/", "Edge/", "EdgA/", "EdgiOS/"}},
	{"Opera", []string{"OPR/", "Opera"}},
	{"Firefox", []string{"Firefox/", "FxiOS/"}},
	{"Chrome", []string{"Chrome/", "CriOS/"}},
	{"Safari", []string{"Safari/"}},
}

var systems = []rule{
	{"Windows", []string{"Windows"}},
	{"Android", []string{"Android"}},
	{"iOS", []string{"iPhone", "iPad", "iPod", "iOS"}},
	{"macOS", []string{"Mac OS", "Macintosh"}},
	{"Linux", []string{"Linux", "X11"}},
}

var devices = []rule{
	{Tablet, []string{"Tablet", "iPad"}},
	{Mobile, []string{"Mobile", "iPhone", "iPod", "Android"}},
}

// Classify never fails. An empty User-Agent yields Unknown for every field.
func Classify(ua string) Profile {
	if strings.TrimSpace(ua) == "" {
		return Profile{Browser: Unknown, OS: Unknown, DeviceType: Unknown}
	}
	return Profile{
		Browser:    match(ua, browsers, Other),
		OS:         match(ua, systems, Other),
		DeviceType: match(ua, devices, Desktop),
	}
}

func match(ua string, rules []rule, fallback string) string {
	for _, r := range rules {
		for _, n := range r.needles {
			if strings.Contains(ua, n) {
				return r.label
			}
		}
	}
	return fallback
}
