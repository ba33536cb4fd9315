package scraper

import "strings"

const videosQuery = "?view=0&sort=dd&shelf_id=0"

// channelTabs are the channel sub-pages a pasted URL may point at.
var channelTabs = []string{"videos", "shorts", "streams", "playlists", "community", "featured"}

// CanonicalChannelURL reduces a pasted channel link to the form stored in
// os_channels: no query, no fragment, no trailing slash, no tab segment.
func CanonicalChannelURL(raw string) string {
	u := strings.TrimSpace(raw)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimRight(u, "/")

	for _, tab := range channelTabs {
		if strings.HasSuffix(u, "/"+tab) {
			u = strings.TrimSuffix(u, "/"+tab)
			break
		}
	}
	return strings.TrimRight(u, "/")
}

// VideosURL is the newest-first videos tab of a channel.
func VideosURL(channelURL string) string {
	return CanonicalChannelURL(channelURL) + "/videos" + videosQuery
}

// SplitChannelList parses a comma-separated list of channel URLs, dropping
// blanks.
func SplitChannelList(arg string) []string {
	var urls []string
	for _, part := range strings.Split(arg, ",") {
		if part = strings.TrimSpace(part); part != "" {
			urls = append(urls, part)
		}
	}
	return urls
}
